package models

// FertilizerFeatures are the soil, crop and environment readings the classifier consumes.
type FertilizerFeatures struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Moisture    float64 `json:"moisture"`
	SoilType    string  `json:"soil"`
	CropType    string  `json:"crop"`
	Nitrogen    float64 `json:"nitrogen"`
	Phosphorous float64 `json:"phosphorous"`
	Potassium   float64 `json:"potassium"`
}

// FertilizerRecommendation is the classifier output.
type FertilizerRecommendation struct {
	Fertilizer string `json:"fertilizer"`
}
