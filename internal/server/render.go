package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"newscard/internal/image"
	"newscard/internal/services"
)

type renderRequest struct {
	TemplateID string            `json:"templateId"`
	ChannelID  string            `json:"channelId"`
	Quality    string            `json:"quality"`
	Fields     map[string]string `json:"fields"`
	// Uploads carry image bytes, base64 encoded in JSON.
	Uploads map[string][]byte `json:"uploads"`
}

// toService builds the render request for a caller on plan. The plan is
// never taken from the body.
func (rr renderRequest) toService(plan services.Plan) (services.RenderRequest, error) {
	q, err := services.ParseQuality(rr.Quality)
	if err != nil {
		return services.RenderRequest{}, err
	}
	if rr.TemplateID == "" && rr.ChannelID == "" {
		return services.RenderRequest{}, fmt.Errorf("templateId or channelId is required")
	}

	form := make(image.FormData, len(rr.Fields)+len(rr.Uploads))
	for k, v := range rr.Fields {
		form[k] = image.Text(v)
	}
	for k, v := range rr.Uploads {
		form[k] = image.Upload(v)
	}
	return services.RenderRequest{
		TemplateID: rr.TemplateID,
		ChannelID:  rr.ChannelID,
		FormData:   form,
		Quality:    q,
		Plan:       plan,
	}, nil
}

func (s *Server) render(w http.ResponseWriter, r *http.Request) {
	var body renderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	req, err := body.toService(s.planFor(r))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	res, err := s.cards.Render(r.Context(), req)
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(res.PNG)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	w.Header().Set("X-Template-Id", res.TemplateID)
	w.WriteHeader(http.StatusOK)
	w.Write(res.PNG)
}
