package fertilizer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"AgriPulse/internal/domain/errs"
	"AgriPulse/internal/domain/models"
	domsvc "AgriPulse/internal/domain/service"
)

// Feature positions in the model input vector.
const (
	FeatureTemperature = iota
	FeatureHumidity
	FeatureMoisture
	FeatureSoilType
	FeatureCropType
	FeatureNitrogen
	FeaturePotassium
	FeaturePhosphorous
	featureCount
)

// Node is a decision tree node. Leaves carry Class; inner nodes send
// x[Feature] <= Threshold to Left and everything else to Right.
type Node struct {
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      *Node   `json:"left,omitempty"`
	Right     *Node   `json:"right,omitempty"`
	Class     *int    `json:"class,omitempty"`
}

// Artifact is the exported form of a trained classifier and its encoders.
type Artifact struct {
	SoilTypes   []string `json:"soil_types"`
	CropTypes   []string `json:"crop_types"`
	Fertilizers []string `json:"fertilizers"`
	Tree        *Node    `json:"tree"`
}

// ModelClassifier evaluates a decision tree over encoded features. It is
// immutable after construction and safe for concurrent use.
type ModelClassifier struct {
	soil  *LabelEncoder
	crop  *LabelEncoder
	fert  *LabelEncoder
	tree  *Node
	depth int
}

// LoadModel reads a JSON artifact from path.
func LoadModel(path string) (*ModelClassifier, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fertilizer model: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("decode fertilizer model %s: %w", path, err)
	}
	return NewModelClassifier(a)
}

func NewModelClassifier(a Artifact) (*ModelClassifier, error) {
	soil, err := NewLabelEncoder(a.SoilTypes)
	if err != nil {
		return nil, fmt.Errorf("soil types: %w", err)
	}
	crop, err := NewLabelEncoder(a.CropTypes)
	if err != nil {
		return nil, fmt.Errorf("crop types: %w", err)
	}
	fert, err := NewLabelEncoder(a.Fertilizers)
	if err != nil {
		return nil, fmt.Errorf("fertilizers: %w", err)
	}
	if a.Tree == nil {
		return nil, fmt.Errorf("fertilizer model has no tree: %w", errs.ErrInvalidArgument)
	}
	depth, err := checkNode(a.Tree, len(a.Fertilizers))
	if err != nil {
		return nil, err
	}
	return &ModelClassifier{soil: soil, crop: crop, fert: fert, tree: a.Tree, depth: depth}, nil
}

func checkNode(n *Node, classes int) (int, error) {
	if n.Class != nil {
		if *n.Class < 0 || *n.Class >= classes {
			return 0, fmt.Errorf("leaf class %d out of range: %w", *n.Class, errs.ErrInvalidArgument)
		}
		return 1, nil
	}
	if n.Left == nil || n.Right == nil {
		return 0, fmt.Errorf("inner node missing a child: %w", errs.ErrInvalidArgument)
	}
	if n.Feature < 0 || n.Feature >= featureCount {
		return 0, fmt.Errorf("split feature %d out of range: %w", n.Feature, errs.ErrInvalidArgument)
	}
	l, err := checkNode(n.Left, classes)
	if err != nil {
		return 0, err
	}
	r, err := checkNode(n.Right, classes)
	if err != nil {
		return 0, err
	}
	if r > l {
		l = r
	}
	return l + 1, nil
}

// Depth is the number of levels of the tree.
func (m *ModelClassifier) Depth() int { return m.depth }

// Encode builds the model input vector. Unseen soil or crop types fail with
// ErrUnknownCategory.
func (m *ModelClassifier) Encode(f models.FertilizerFeatures) ([]float64, error) {
	soil, err := m.soil.Transform(f.SoilType)
	if err != nil {
		return nil, fmt.Errorf("soil type: %w", err)
	}
	crop, err := m.crop.Transform(f.CropType)
	if err != nil {
		return nil, fmt.Errorf("crop type: %w", err)
	}
	x := make([]float64, featureCount)
	x[FeatureTemperature] = f.Temperature
	x[FeatureHumidity] = f.Humidity
	x[FeatureMoisture] = f.Moisture
	x[FeatureSoilType] = float64(soil)
	x[FeatureCropType] = float64(crop)
	x[FeatureNitrogen] = f.Nitrogen
	x[FeaturePotassium] = f.Potassium
	x[FeaturePhosphorous] = f.Phosphorous
	return x, nil
}

func (m *ModelClassifier) Classify(ctx context.Context, f models.FertilizerFeatures) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	x, err := m.Encode(f)
	if err != nil {
		return "", err
	}
	n := m.tree
	for n.Class == nil {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return m.fert.InverseTransform(*n.Class)
}

var _ domsvc.FertilizerClassifier = (*ModelClassifier)(nil)
