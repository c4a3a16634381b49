// Package genai is a minimal typed client for the Gemini REST API: single
// item generation, text embedding, resumable file upload/download, and the
// asynchronous batch-generation job triad (create/get/download).
package genai

// Part is one chunk of request or response content.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inline_data,omitempty"`
}

// InlineData carries base64-encoded media bytes.
type InlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

// Content is an ordered list of parts.
type Content struct {
	Parts []Part `json:"parts"`
}

// GenerationConfig tunes a generation request. Pointer fields stay absent
// from the wire format when nil; some API revisions reject unknown fields.
type GenerationConfig struct {
	Temperature      float64         `json:"temperature"`
	MaxOutputTokens  int             `json:"maxOutputTokens"`
	ResponseMIMEType string          `json:"responseMimeType,omitempty"`
	ThinkingConfig   *ThinkingConfig `json:"thinkingConfig,omitempty"`
}

// ThinkingConfig bounds model "thinking" tokens.
type ThinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

// GenerateRequest is the body of a generateContent call and of one batch
// input line.
type GenerateRequest struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generation_config,omitempty"`
}

// ResponseCandidate is one completion in a generation response.
type ResponseCandidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

// UsageMetadata reports token counts for one generation call.
type UsageMetadata struct {
	PromptTokenCount     int64 `json:"promptTokenCount"`
	CandidatesTokenCount int64 `json:"candidatesTokenCount"`
	TotalTokenCount      int64 `json:"totalTokenCount"`
}

// GenerateResponse is the raw single-item generation response.
type GenerateResponse struct {
	Candidates []ResponseCandidate `json:"candidates"`
	Usage      *UsageMetadata      `json:"usageMetadata,omitempty"`
}

// FileInfo describes a remote file. The download URI appears under either
// field name depending on API revision.
type FileInfo struct {
	Name             string `json:"name"`
	DisplayName      string `json:"displayName"`
	URI              string `json:"uri"`
	DownloadURI      string `json:"downloadUri"`
	DownloadURISnake string `json:"download_uri"`
	State            string `json:"state"`
}

// ResolveDownloadURI returns whichever download URI field was populated.
func (f *FileInfo) ResolveDownloadURI() string {
	if f.DownloadURI != "" {
		return f.DownloadURI
	}
	return f.DownloadURISnake
}

// fileEnvelope handles upload/get responses that wrap the file object in a
// "file" key as well as ones that return it bare.
type fileEnvelope struct {
	File *FileInfo `json:"file"`
	FileInfo
}

func (e *fileEnvelope) resolve() *FileInfo {
	if e.File != nil {
		return e.File
	}
	return &e.FileInfo
}

// OutputConfig locates a batch job's responses file. The field name varies
// across API revisions.
type OutputConfig struct {
	ResponsesFile      string `json:"responsesFile"`
	ResponsesFileSnake string `json:"responses_file"`
	FileName           string `json:"fileName"`
	FileNameSnake      string `json:"file_name"`
}

// Resolve returns the first populated responses-file reference, or "".
func (o *OutputConfig) Resolve() string {
	if o == nil {
		return ""
	}
	for _, v := range []string{o.ResponsesFile, o.ResponsesFileSnake, o.FileName, o.FileNameSnake} {
		if v != "" {
			return v
		}
	}
	return ""
}

// BatchState holds the batch fields of interest wherever they appear in the
// operation envelope.
type BatchState struct {
	Name            string         `json:"name"`
	State           string         `json:"state"`
	Output          *OutputConfig  `json:"output"`
	OutputConfig    *OutputConfig  `json:"outputConfig"`
	OutputCfgSnake  *OutputConfig  `json:"output_config"`
	BatchStats      map[string]any `json:"batchStats"`
	BatchStatsSnake map[string]any `json:"batch_stats"`
	Batch           *BatchState    `json:"batch"`
}

// hasBatchFields reports whether this object looks like a batch payload
// rather than a bare envelope level.
func (b *BatchState) hasBatchFields() bool {
	return b != nil && (b.Output != nil || b.OutputConfig != nil || b.OutputCfgSnake != nil ||
		b.BatchStats != nil || b.BatchStatsSnake != nil || b.State != "")
}

// ResponsesFile returns the batch's output file reference, or "".
func (b *BatchState) ResponsesFile() string {
	if b == nil {
		return ""
	}
	for _, o := range []*OutputConfig{b.Output, b.OutputConfig, b.OutputCfgSnake} {
		if ref := o.Resolve(); ref != "" {
			return ref
		}
	}
	return ""
}

// Stats returns whichever batch-stats map was populated.
func (b *BatchState) Stats() map[string]any {
	if b == nil {
		return nil
	}
	if b.BatchStats != nil {
		return b.BatchStats
	}
	return b.BatchStatsSnake
}

// Operation is the long-running-operation envelope returned by batch create
// and get calls. The batch payload nests under response, metadata, or batch
// depending on API revision and operation phase.
type Operation struct {
	Name     string      `json:"name"`
	Done     bool        `json:"done"`
	Response *BatchState `json:"response"`
	Metadata *BatchState `json:"metadata"`
	Batch    *BatchState `json:"batch"`
}

// Terminal batch job states.
const (
	StateSucceeded = "SUCCEEDED"
	StateFailed    = "FAILED"
	StateCancelled = "CANCELLED"
)

// ResolveBatch walks the envelope and returns the innermost object carrying
// batch fields, or nil.
func (op *Operation) ResolveBatch() *BatchState {
	if op == nil {
		return nil
	}
	candidates := []*BatchState{op.Response, op.Metadata, op.Batch}
	for _, c := range []*BatchState{op.Response, op.Metadata} {
		if c != nil && c.Batch != nil {
			candidates = append(candidates, c.Batch)
		}
	}
	for _, c := range candidates {
		if c.hasBatchFields() {
			return c
		}
	}
	return nil
}

// State returns the batch state string, or "".
func (op *Operation) State() string {
	if b := op.ResolveBatch(); b != nil {
		return b.State
	}
	return ""
}

// IsTerminal reports whether the operation finished, by done flag or state.
func (op *Operation) IsTerminal() bool {
	if op == nil {
		return false
	}
	if op.Done {
		return true
	}
	switch op.State() {
	case StateSucceeded, StateFailed, StateCancelled:
		return true
	}
	return false
}

// ResolveName returns the operation/job name wherever it appears. Create
// responses sometimes nest it under response or batch.
func (op *Operation) ResolveName() string {
	if op.Name != "" {
		return op.Name
	}
	if op.Response != nil && op.Response.Name != "" {
		return op.Response.Name
	}
	if op.Batch != nil && op.Batch.Name != "" {
		return op.Batch.Name
	}
	return ""
}

// batchCreateRequest is the body of a batchGenerateContent call.
type batchCreateRequest struct {
	Batch batchSpec `json:"batch"`
}

type batchSpec struct {
	DisplayName string           `json:"display_name"`
	InputConfig batchInputConfig `json:"input_config"`
}

type batchInputConfig struct {
	FileName string `json:"file_name"`
}

// EmbedResponse is the embedContent response. Some revisions return a list.
type EmbedResponse struct {
	Embedding  *EmbedValues  `json:"embedding"`
	Embeddings []EmbedValues `json:"embeddings"`
}

// EmbedValues holds one embedding vector.
type EmbedValues struct {
	Values []float64 `json:"values"`
}

// ResolveValues returns the first populated vector in the response.
func (r *EmbedResponse) ResolveValues() []float64 {
	if r == nil {
		return nil
	}
	if r.Embedding != nil && len(r.Embedding.Values) > 0 {
		return r.Embedding.Values
	}
	if len(r.Embeddings) > 0 {
		return r.Embeddings[0].Values
	}
	return nil
}
