package core

import (
	"context"
	"time"
)

// Format identifies an image codec.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatWebP    Format = "webp"
	FormatBMP     Format = "bmp"
	FormatTIFF    Format = "tiff"
	FormatGIF     Format = "gif"
	FormatUnknown Format = "unknown"
)

// Lossy reports whether encoders for f honour a quality setting.
func (f Format) Lossy() bool {
	return f == FormatJPEG || f == FormatWebP
}

// Extension returns the canonical file extension for f, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatPNG:
		return ".png"
	case FormatWebP:
		return ".webp"
	case FormatBMP:
		return ".bmp"
	case FormatTIFF:
		return ".tiff"
	case FormatGIF:
		return ".gif"
	}
	return ""
}

// ColorSpace represents the image colour model.
type ColorSpace string

const (
	ColorSpaceRGB  ColorSpace = "rgb"
	ColorSpaceRGBA ColorSpace = "rgba"
	ColorSpaceCMYK ColorSpace = "cmyk"
	ColorSpaceGray ColorSpace = "gray"
)

// Metadata holds extracted image information.
type Metadata struct {
	Width      int
	Height     int
	Format     Format
	ColorSpace ColorSpace
	HasAlpha   bool
	SizeBytes  int64
}

// ImageData is the in-memory representation passed through a pipeline.
// Data holds encoded bytes; Image holds the decoded pixel buffer.
type ImageData struct {
	Data   []byte
	Format Format

	// Decoded pixel buffer, an image.Image once a decode step has run.
	Image interface{}

	Meta Metadata

	// Size of the original raw input.
	OriginalSize int64
}

// ── Crop ──────────────────────────────────────────────────────────────────────

// CropKind selects the aspect-ratio crop applied before convergence.
type CropKind int

const (
	CropNone CropKind = iota
	CropSquare
	Crop16x9
	Crop4x3
	CropCustom
)

func (k CropKind) String() string {
	switch k {
	case CropSquare:
		return "square"
	case Crop16x9:
		return "16:9"
	case Crop4x3:
		return "4:3"
	case CropCustom:
		return "custom"
	default:
		return "none"
	}
}

// CropAnchor decides where the crop window is placed.
type CropAnchor int

const (
	// AnchorCenter centres the window; an odd margin loses its extra pixel on
	// the trailing edge.
	AnchorCenter CropAnchor = iota
	// AnchorSmart keeps the window size and moves it onto the most
	// interesting region of the image.
	AnchorSmart
)

// CropSpec describes a crop.  Width and Height are only read for CropCustom.
type CropSpec struct {
	Kind   CropKind
	Width  float64
	Height float64
	Anchor CropAnchor
}

// NoCrop is the identity crop.
var NoCrop = CropSpec{Kind: CropNone}

// Square returns a centred square crop.
func Square() CropSpec { return CropSpec{Kind: CropSquare} }

// Ratio16x9 returns a centred 16:9 crop.
func Ratio16x9() CropSpec { return CropSpec{Kind: Crop16x9} }

// Ratio4x3 returns a centred 4:3 crop.
func Ratio4x3() CropSpec { return CropSpec{Kind: Crop4x3} }

// CustomRatio returns a centred w:h crop.
func CustomRatio(w, h float64) CropSpec { return CropSpec{Kind: CropCustom, Width: w, Height: h} }

// ── Size target ───────────────────────────────────────────────────────────────

// TargetKind selects the metric the engine converges on.
type TargetKind int

const (
	TargetNone TargetKind = iota
	TargetFileSize
	TargetWidth
	TargetHeight
)

func (k TargetKind) String() string {
	switch k {
	case TargetFileSize:
		return "mb"
	case TargetWidth:
		return "width"
	case TargetHeight:
		return "height"
	default:
		return "none"
	}
}

// SizeTarget is the convergence goal.  Value is megabytes for TargetFileSize
// and pixels for TargetWidth / TargetHeight.
type SizeTarget struct {
	Kind  TargetKind
	Value float64
}

// NoTarget leaves the size untouched.
var NoTarget = SizeTarget{Kind: TargetNone}

// ByFileSize targets a file size in megabytes.
func ByFileSize(mb float64) SizeTarget { return SizeTarget{Kind: TargetFileSize, Value: mb} }

// ByWidth targets a pixel width.
func ByWidth(px int) SizeTarget { return SizeTarget{Kind: TargetWidth, Value: float64(px)} }

// ByHeight targets a pixel height.
func ByHeight(px int) SizeTarget { return SizeTarget{Kind: TargetHeight, Value: float64(px)} }

// ── Operation ─────────────────────────────────────────────────────────────────

// Operation is the direction the engine moves the image in.
type Operation int

const (
	OperationAuto Operation = iota
	OperationCompress
	OperationUpscale
)

func (o Operation) String() string {
	switch o {
	case OperationCompress:
		return "compress"
	case OperationUpscale:
		return "upscale"
	default:
		return "auto"
	}
}

// PastTense is the word used in output filenames.
func (o Operation) PastTense() string {
	switch o {
	case OperationCompress:
		return "compressed"
	case OperationUpscale:
		return "upscaled"
	default:
		return ""
	}
}

// ── Request / result ──────────────────────────────────────────────────────────

// ProgressFunc receives the fraction of a single transform that is complete.
// It is called synchronously from the goroutine running the transform.
type ProgressFunc func(fraction float64)

// Request is the flat parameter set of a single-file transform.
type Request struct {
	SourcePath string
	OutputDir  string
	Target     SizeTarget
	Operation  Operation
	Crop       CropSpec
	// Quality is the starting encoder quality; 0 uses the configured default.
	Quality int
	// SkipIfAlreadySatisfied overrides the configured policy when non-nil.
	SkipIfAlreadySatisfied *bool
}

// Outcome classifies how a transform ended.
type Outcome string

const (
	OutcomeConverged        Outcome = "converged"
	OutcomeCropOnly         Outcome = "crop_only"
	OutcomeSkipped          Outcome = "skipped"
	OutcomeAlreadySatisfied Outcome = "already_satisfied"
	OutcomeExhausted        Outcome = "exhausted"
)

// TransformResult is the immutable record returned for each file.
// OutputPath is empty when nothing was written; Ratio is 0 when the target
// was not reached and 1 when no size transform was needed.
type TransformResult struct {
	SourcePath string
	OutputPath string
	Ratio      float64
	Message    string

	// Source measurements, before any crop.  Zero when the source was
	// never decoded.
	SourceBytes  int64
	SourceWidth  int
	SourceHeight int

	Outcome    Outcome
	Operation  Operation
	Iterations int
	Width      int
	Height     int
	SizeBytes  int64
	Quality    int
}

// Job encapsulates a single unit of work for the worker pool.
type Job struct {
	ID      string
	Ctx     context.Context //nolint:containedctx // intentional for async jobs
	Request Request
	// Progress is optional.
	Progress ProgressFunc
	// Result channel; nil for fire-and-forget.
	ResultCh chan<- JobResult
}

// JobResult wraps the outcome of an async job.
type JobResult struct {
	JobID  string
	Result *TransformResult
	Err    error
}

// ProgressUpdate is one progress observation of a batch member.
type ProgressUpdate struct {
	JobID    string
	Index    int
	Path     string
	Fraction float64
	// Done is set on the last update of a job, together with Result or Err.
	Done   bool
	Result *TransformResult
	Err    error
}

// Step is the fundamental pipeline building block.  Each Step transforms an
// *ImageData value and must be safe for concurrent use across goroutines.
type Step interface {
	Name() string
	Execute(ctx context.Context, img *ImageData) (*ImageData, error)
}

// Hook is an optional observer invoked around pipeline steps.
type Hook interface {
	BeforeStep(ctx context.Context, stepName string, img *ImageData)
	AfterStep(ctx context.Context, stepName string, img *ImageData, d time.Duration, err error)
}
