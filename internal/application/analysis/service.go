package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path"
	"strings"

	"github.com/claimdesk/incident-api/internal/application"
	"github.com/claimdesk/incident-api/internal/domain/detection"
	"github.com/claimdesk/incident-api/internal/domain/reports"
	"github.com/claimdesk/incident-api/internal/domain/workererrors"
)

// Service is the background analysis worker. Given a report id it fetches
// the report's photos, calls the detection service, copies referenced
// output images into first-party storage under a report-scoped path, and
// persists the merged result with a status reset.
//
// Each invocation is stateless; downstream calls are sequential with no
// retry. Failures are annotated on the report best-effort and the original
// error is still returned so the invoking side can mark the run failed.
type Service struct {
	Reports  reports.Repository
	Detector detection.Client
	Photos   reports.PhotoStore
	Failures workererrors.Repository
	// Summarizer is optional; when set, a narrative summary of the merged
	// result is generated and stored alongside it. Summary failures
	// degrade, they never fail the run.
	Summarizer detection.Summarizer
	Clock      application.Clock
}

// Result describes one worker run.
type Result struct {
	ReportID    reports.ReportID `json:"report_id"`
	Skipped     bool             `json:"skipped"`
	Detections  int              `json:"detections"`
	CopiedPaths []string         `json:"copied_paths,omitempty"`
}

// AnalyzeReport runs the full pipeline for one report.
func (s *Service) AnalyzeReport(ctx context.Context, id reports.ReportID) (Result, error) {
	rep, err := s.Reports.Get(ctx, id)
	if err != nil {
		return Result{ReportID: id}, err
	}

	// No photos: complete as a no-op success without touching the
	// detection service or storage.
	if len(rep.PhotoKeys) == 0 {
		return Result{ReportID: id, Skipped: true}, nil
	}

	res, err := s.analyze(ctx, rep)
	if err != nil {
		s.annotateFailure(ctx, rep, err)
		return Result{ReportID: id}, err
	}
	return res, nil
}

func (s *Service) analyze(ctx context.Context, rep *reports.IncidentReport) (Result, error) {
	req := detection.Request{
		Images: make([]detection.Image, 0, len(rep.PhotoKeys)),
		AnalysisContext: map[string]any{
			"report_id":  string(rep.ID),
			"company_id": rep.CompanyID,
		},
	}
	for _, key := range rep.PhotoKeys {
		req.Images = append(req.Images, detection.Image{Location: key, Format: formatFromKey(key)})
	}

	result, err := s.Detector.Analyze(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("detect: %w", err)
	}

	// Copy each distinct referenced output image into our own storage,
	// one copy per distinct location. A failed copy leaves that
	// detection's local path empty; it does not abort the run.
	copied := make(map[string]string)
	var copiedPaths []string
	for i, d := range result.Detections {
		if d.OutputLocation == "" {
			continue
		}
		local, seen := copied[d.OutputLocation]
		if !seen {
			dest := detectionKey(rep, d.OutputLocation)
			local, err = s.Photos.Copy(ctx, d.OutputLocation, dest)
			if err != nil {
				log.Printf("analysis: copy failed report=%s src=%s err=%v", rep.ID, d.OutputLocation, err)
				copied[d.OutputLocation] = ""
				continue
			}
			copied[d.OutputLocation] = local
			copiedPaths = append(copiedPaths, local)
		}
		if local != "" {
			result.Detections[i].LocalPath = local
		}
	}

	merged, err := json.Marshal(result)
	if err != nil {
		return Result{}, fmt.Errorf("encode result: %w", err)
	}

	summary := s.summarize(ctx, rep, string(merged))

	if err := s.Reports.AttachAnalysis(ctx, rep.ID, string(merged), summary, reports.StatusSubmitted); err != nil {
		return Result{}, fmt.Errorf("persist result: %w", err)
	}

	return Result{
		ReportID:    rep.ID,
		Detections:  len(result.Detections),
		CopiedPaths: copiedPaths,
	}, nil
}

func (s *Service) summarize(ctx context.Context, rep *reports.IncidentReport, resultJSON string) string {
	if s.Summarizer == nil {
		return ""
	}
	summary, err := s.Summarizer.Summarize(ctx, resultJSON)
	if err != nil {
		log.Printf("analysis: summary failed report=%s err=%v", rep.ID, err)
		return ""
	}
	return summary
}

// annotateFailure records the failure on the report and in the failure
// table. Both writes are best-effort: their own errors are logged and
// swallowed, never escalated.
func (s *Service) annotateFailure(ctx context.Context, rep *reports.IncidentReport, cause error) {
	if err := s.Reports.SetAnalysisError(ctx, rep.ID, cause.Error()); err != nil {
		log.Printf("analysis: failure annotation write failed report=%s err=%v", rep.ID, err)
	}
	if s.Failures == nil {
		return
	}
	entry := &workererrors.WorkerError{
		CompanyID: rep.CompanyID,
		ReportID:  string(rep.ID),
		Stage:     stageOf(cause),
		Message:   cause.Error(),
		CreatedAt: s.Clock.Now(),
	}
	if err := s.Failures.Save(ctx, entry); err != nil {
		log.Printf("analysis: failure log write failed report=%s err=%v", rep.ID, err)
	}
}

func stageOf(err error) string {
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "detect:"):
		return "detect"
	case strings.HasPrefix(msg, "encode result:"):
		return "persist"
	case strings.HasPrefix(msg, "persist result:"):
		return "persist"
	default:
		return "other"
	}
}

func detectionKey(rep *reports.IncidentReport, srcLocation string) string {
	tenant := rep.CompanyID
	if tenant == "" {
		tenant = "standalone"
	}
	return fmt.Sprintf("%s/%s/detections/%s", tenant, rep.ID, path.Base(srcLocation))
}

func formatFromKey(key string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(key)), ".")
	if ext == "" {
		return "jpeg"
	}
	if ext == "jpg" {
		return "jpeg"
	}
	return ext
}
