package models

// Requests for the HTTP endpoints. Defined in domain for consistency and reuse.

type MarketAnalysisRequest struct {
	Crops    []string `json:"crops" validate:"required,min=1,unique,dive,required"`
	Market   string   `json:"market" default:"Kolar" validate:"required"`
	LandSize float64  `json:"land_size" default:"1" validate:"gt=0"`
}

type FertilizerRequest struct {
	Temperature float64 `json:"temperature" validate:"gte=-50,lte=70"`
	Humidity    float64 `json:"humidity" validate:"gte=0,lte=100"`
	Moisture    float64 `json:"moisture" validate:"gte=0,lte=100"`
	Soil        string  `json:"soil" validate:"required"`
	Crop        string  `json:"crop" validate:"required"`
	Nitrogen    float64 `json:"nitrogen" validate:"gte=0"`
	Phosphorous float64 `json:"phosphorous" validate:"gte=0"`
	Potassium   float64 `json:"potassium" validate:"gte=0"`
}

// Features converts the request into classifier input.
func (r FertilizerRequest) Features() FertilizerFeatures {
	return FertilizerFeatures{
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Moisture:    r.Moisture,
		SoilType:    r.Soil,
		CropType:    r.Crop,
		Nitrogen:    r.Nitrogen,
		Phosphorous: r.Phosphorous,
		Potassium:   r.Potassium,
	}
}
