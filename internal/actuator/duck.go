package actuator

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

type streamInfo struct {
	ID      int
	Volume  int
	AppName string
}

type fadeTarget struct {
	id   int
	from int
	to   int
}

// Ducker fades every PulseAudio sink input except our own down while the
// agent speaks and back up afterwards.
type Ducker struct {
	mu          sync.Mutex
	run         Runner
	active      bool
	selfNames   []string
	originalVol map[int]int
	minVolume   int
	step        time.Duration
}

func NewDucker(run Runner, selfNames []string, minVolume int) *Ducker {
	if run == nil {
		run = ExecRunner{}
	}

	return &Ducker{
		run:         run,
		selfNames:   append([]string(nil), selfNames...),
		originalVol: make(map[int]int),
		minVolume:   max(0, min(minVolume, 150)),
		step:        10 * time.Millisecond,
	}
}

// DuckOthers scales other streams to current*factor, never below minVolume.
func (d *Ducker) DuckOthers(ctx context.Context, factor float64, duration time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	streams, err := d.listStreams(ctx)
	if err != nil {
		return err
	}

	d.originalVol = make(map[int]int)

	var targets []fadeTarget
	for _, s := range streams {
		if d.isSelf(s) {
			continue
		}

		to := math.Max(float64(s.Volume)*factor, float64(d.minVolume))
		to = math.Min(to, 150)

		d.originalVol[s.ID] = s.Volume
		targets = append(targets, fadeTarget{id: s.ID, from: s.Volume, to: int(math.Round(to))})
	}

	if err := d.fade(ctx, targets, duration); err != nil {
		return err
	}

	d.active = true
	return nil
}

// UnduckOthers fades ducked streams back. Streams that appeared after the
// duck are left alone.
func (d *Ducker) UnduckOthers(ctx context.Context, duration time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	streams, err := d.listStreams(ctx)
	if err != nil {
		return err
	}

	var targets []fadeTarget
	for _, s := range streams {
		orig, ok := d.originalVol[s.ID]
		if !ok || d.isSelf(s) {
			continue
		}
		targets = append(targets, fadeTarget{id: s.ID, from: s.Volume, to: orig})
	}

	if err := d.fade(ctx, targets, duration); err != nil {
		return err
	}

	d.originalVol = make(map[int]int)
	d.active = false
	return nil
}

func (d *Ducker) isSelf(s streamInfo) bool {
	for _, name := range d.selfNames {
		if s.AppName == name {
			return true
		}
	}
	return false
}

func (d *Ducker) fade(ctx context.Context, targets []fadeTarget, duration time.Duration) error {
	if len(targets) == 0 {
		return nil
	}

	steps := max(1, int(duration/d.step))
	if duration <= 0 {
		steps = 0
	}

	for i := 0; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		frac := 1.0
		if steps > 0 {
			frac = float64(i) / float64(steps)
		}

		for _, t := range targets {
			v := int(math.Round(float64(t.from) + float64(t.to-t.from)*frac))
			if err := d.setSinkInputVolume(ctx, t.id, v); err != nil {
				return fmt.Errorf("set volume id=%d: %w", t.id, err)
			}
		}

		if i < steps {
			time.Sleep(duration / time.Duration(steps))
		}
	}

	return nil
}

func (d *Ducker) listStreams(ctx context.Context) ([]streamInfo, error) {
	out, err := d.run.Output(ctx, "pactl", "list", "sink-inputs")
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}
	return parseSinkInputs(string(out)), nil
}

func (d *Ducker) setSinkInputVolume(ctx context.Context, id, percent int) error {
	percent = max(0, min(percent, 150))
	return d.run.Run(ctx, "pactl", "set-sink-input-volume", strconv.Itoa(id), percentArg(percent))
}

func parseSinkInputs(text string) []streamInfo {
	var res []streamInfo

	blocks := strings.Split(text, "Sink Input #")
	for _, block := range blocks[1:] {
		header, body, ok := strings.Cut(block, "\n")
		if !ok {
			continue
		}

		id, err := strconv.Atoi(strings.TrimSpace(header))
		if err != nil {
			continue
		}

		s := streamInfo{ID: id}
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)

			if strings.HasPrefix(line, "Volume:") && s.Volume == 0 {
				if m := percentRe.FindStringSubmatch(line); len(m) >= 2 {
					s.Volume, _ = strconv.Atoi(m[1])
				}
			}

			// application.name = "Firefox"
			if name, ok := strings.CutPrefix(line, "application.name ="); ok && s.AppName == "" {
				s.AppName = strings.Trim(strings.TrimSpace(name), `"`)
			}
		}

		if s.Volume == 0 && s.AppName == "" {
			continue
		}
		res = append(res, s)
	}

	return res
}
