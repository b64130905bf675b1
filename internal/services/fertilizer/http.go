package fertilizer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"AgriPulse/internal/domain/errs"
	"AgriPulse/internal/domain/models"
	domsvc "AgriPulse/internal/domain/service"
	"AgriPulse/internal/services/analytics"
)

const predictPath = "/fertilizer/predict"

// HTTPClassifier asks the model sidecar for a recommendation.
type HTTPClassifier struct {
	base *analytics.HTTPServiceBase
}

func NewHTTPClassifier(baseURL string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{base: analytics.NewHTTPServiceBase(baseURL, timeout)}
}

func (c *HTTPClassifier) Classify(ctx context.Context, f models.FertilizerFeatures) (string, error) {
	var resp models.FertilizerRecommendation
	if err := c.base.PostJSONWithRetry(ctx, predictPath, f, &resp, 2); err != nil {
		if analytics.StatusCode(err) == http.StatusUnprocessableEntity {
			return "", fmt.Errorf("soil %q / crop %q: %w", f.SoilType, f.CropType, errs.ErrUnknownCategory)
		}
		return "", fmt.Errorf("fertilizer predict: %w", err)
	}
	if resp.Fertilizer == "" {
		return "", fmt.Errorf("fertilizer sidecar returned an empty label")
	}
	return resp.Fertilizer, nil
}

var _ domsvc.FertilizerClassifier = (*HTTPClassifier)(nil)
