package convert

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"reelcap/internal/logging"
	"reelcap/internal/media"
	"reelcap/internal/services"
)

// EngineHandle is the engine surface the pipeline drives. Satisfied by
// *engine.Handle.
type EngineHandle interface {
	WriteSlot(name string, data []byte) error
	ReadSlot(name string) ([]byte, error)
	RemoveSlot(name string) error
	SlotPath(name string) string
	Invoke(ctx context.Context, args ...string) error
}

// Animated output is downsampled; full frame rate and resolution make the
// palette passes explode in size for no visible gain.
const (
	gifFilter = "fps=10,scale=320:-1:flags=lanczos"
)

// Pipeline converts media assets through an engine handle. Each conversion
// uses freshly named slots, so concurrent conversions on one handle do not
// collide.
type Pipeline struct {
	handle EngineHandle
	logger *slog.Logger
}

// New builds a Pipeline over a ready engine handle.
func New(handle EngineHandle, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		handle: handle,
		logger: logging.NewComponentLogger(logger, "convert"),
	}
}

// Convert transcodes the asset into the target format. onProgress, when
// non-nil, receives coarse 0-100 progress across the conversion passes.
// Every slot the conversion creates is removed before returning, on success
// and on failure alike.
func (p *Pipeline) Convert(ctx context.Context, asset media.Asset, target media.Format, onProgress func(percent int)) (media.Asset, error) {
	report := func(percent int) {
		if onProgress != nil {
			onProgress(percent)
		}
	}

	if len(asset.Bytes) == 0 {
		return media.Asset{}, services.Wrap(services.ErrConversionFailed, "convert", "prepare", "input asset is empty", nil)
	}
	if target == asset.Format {
		report(100)
		return asset, nil
	}

	var passes []pass
	switch target {
	case media.FormatMP4:
		passes = mp4Passes()
	case media.FormatGIF:
		passes = gifPasses()
	default:
		return media.Asset{}, services.Wrap(services.ErrUnsupportedFormat, "convert", "prepare", "no conversion to "+string(target), nil)
	}

	job := newJob(p.handle, asset.Format, target)
	defer job.cleanup(p.logger)

	started := time.Now()
	p.logger.Info("conversion started",
		logging.String("source_format", string(asset.Format)),
		logging.String("target_format", string(target)),
		logging.Int("input_bytes", len(asset.Bytes)),
	)

	if err := job.writeInput(asset.Bytes); err != nil {
		return media.Asset{}, services.Wrap(services.ErrConversionFailed, "convert", "prepare", "stage input slot", err)
	}
	report(10)

	span := 80 / len(passes)
	for i, pass := range passes {
		// Tracked before the invocation so a failing pass still has its
		// partial output cleaned up.
		job.track(pass.produces)
		if err := p.handle.Invoke(ctx, job.expand(pass.args)...); err != nil {
			return media.Asset{}, services.Wrap(services.ErrConversionFailed, "convert", pass.name, "engine invocation", err)
		}
		report(10 + span*(i+1))
	}

	output, err := job.readOutput()
	if err != nil {
		return media.Asset{}, services.Wrap(services.ErrConversionFailed, "convert", "collect", "read output slot", err)
	}
	if len(output) == 0 {
		return media.Asset{}, services.Wrap(services.ErrConversionFailed, "convert", "collect", "engine produced an empty output", nil)
	}
	report(100)

	p.logger.Info("conversion complete",
		logging.String("target_format", string(target)),
		logging.Int("output_bytes", len(output)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return media.Asset{Bytes: output, Format: target}, nil
}

// pass is one engine invocation. Slot placeholders in args are expanded to
// slot paths per job.
type pass struct {
	name     string
	args     []string
	produces string
}

const (
	slotInput   = "@input"
	slotOutput  = "@output"
	slotPalette = "@palette"
)

func mp4Passes() []pass {
	return []pass{{
		name: "transcode",
		args: []string{
			"-y", "-i", slotInput,
			"-c:v", "libx264",
			"-preset", "veryfast",
			"-crf", "23",
			"-pix_fmt", "yuv420p",
			"-movflags", "+faststart",
			slotOutput,
		},
		produces: slotOutput,
	}}
}

func gifPasses() []pass {
	return []pass{
		{
			name: "palettegen",
			args: []string{
				"-y", "-i", slotInput,
				"-vf", gifFilter + ",palettegen",
				slotPalette,
			},
			produces: slotPalette,
		},
		{
			name: "paletteuse",
			args: []string{
				"-y", "-i", slotInput,
				"-i", slotPalette,
				"-filter_complex", gifFilter + "[x];[x][1:v]paletteuse",
				slotOutput,
			},
			produces: slotOutput,
		},
	}
}

// conversionJob owns the uniquely named slots for one conversion.
type conversionJob struct {
	handle  EngineHandle
	input   string
	output  string
	palette string
	created []string
}

func newJob(handle EngineHandle, source, target media.Format) *conversionJob {
	id := uuid.NewString()
	return &conversionJob{
		handle:  handle,
		input:   "in-" + id + source.Extension(),
		output:  "out-" + id + target.Extension(),
		palette: "palette-" + id + ".png",
	}
}

func (j *conversionJob) writeInput(data []byte) error {
	if err := j.handle.WriteSlot(j.input, data); err != nil {
		return err
	}
	j.created = append(j.created, j.input)
	return nil
}

func (j *conversionJob) readOutput() ([]byte, error) {
	return j.handle.ReadSlot(j.output)
}

// track records a slot an engine pass produced so cleanup covers it even when
// a later pass fails.
func (j *conversionJob) track(placeholder string) {
	j.created = append(j.created, j.slotFor(placeholder))
}

func (j *conversionJob) expand(args []string) []string {
	expanded := make([]string, len(args))
	for i, arg := range args {
		switch arg {
		case slotInput, slotOutput, slotPalette:
			expanded[i] = j.handle.SlotPath(j.slotFor(arg))
		default:
			expanded[i] = arg
		}
	}
	return expanded
}

func (j *conversionJob) slotFor(placeholder string) string {
	switch placeholder {
	case slotInput:
		return j.input
	case slotOutput:
		return j.output
	case slotPalette:
		return j.palette
	default:
		return placeholder
	}
}

func (j *conversionJob) cleanup(logger *slog.Logger) {
	for _, name := range j.created {
		if err := j.handle.RemoveSlot(name); err != nil {
			logger.Warn("slot cleanup failed",
				logging.String("slot", name),
				logging.Error(err),
			)
		}
	}
}
