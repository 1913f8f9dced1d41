package detection

// Image references one stored photo by object-storage location.
type Image struct {
	Location string `json:"location"`
	Format   string `json:"format"`
}

// Request is the wire payload sent to the detection service.
type Request struct {
	Images          []Image        `json:"images"`
	AnalysisContext map[string]any `json:"analysis_context,omitempty"`
}

// Detection is one finding in the service response. OutputLocation, when
// present, points at an annotated image in the service's own storage;
// LocalPath is filled in after that image has been copied into first-party
// storage.
type Detection struct {
	Label          string  `json:"label"`
	Confidence     float64 `json:"confidence"`
	OutputLocation string  `json:"output_location,omitempty"`
	LocalPath      string  `json:"local_path,omitempty"`
}

// Result is the parsed body of a successful detection response.
type Result struct {
	Detections   []Detection `json:"detections"`
	ModelVersion string      `json:"model_version,omitempty"`
}

// Response is the raw wire envelope: exactly one of Result or Error is set.
type Response struct {
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}
