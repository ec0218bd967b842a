package nlu

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Rule is one routing step. Rules are tried in order and the first match
// ends routing.
type Rule struct {
	Name  Kind
	Match func(Command) (Intent, bool)
}

type Router struct {
	rules []Rule
	apps  AppTable
	now   func() time.Time
}

type RouterOption func(*Router)

// WithClock replaces the wall clock used to annotate free-form commands.
func WithClock(now func() time.Time) RouterOption {
	return func(r *Router) { r.now = now }
}

func NewRouter(apps AppTable, opts ...RouterOption) *Router {
	if apps == nil {
		apps = DefaultApps()
	}

	r := &Router{
		apps: apps,
		now:  time.Now,
	}
	for _, o := range opts {
		o(r)
	}

	r.rules = []Rule{
		{KindVolume, matchVolume},
		{KindMedia, matchMedia},
		{KindSpotifySearch, matchSpotifySearch},
		{KindArithmetic, matchArithmetic},
		{KindAppLaunch, r.matchAppLaunch},
	}

	return r
}

// Rules returns the ordered rule list, without the free-form fallback.
func (r *Router) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// Route never fails: a command no rule claims becomes FreeForm.
func (r *Router) Route(cmd Command) Intent {
	for _, rule := range r.rules {
		if in, ok := rule.Match(cmd); ok {
			return in
		}
	}
	return r.freeForm(cmd)
}

func (r *Router) freeForm(cmd Command) Intent {
	return FreeForm{
		Text: fmt.Sprintf("(System: Time is %s) %s", r.now().Format("15:04"), cmd),
	}
}

var firstInt = regexp.MustCompile(`\d+`)

func matchVolume(cmd Command) (Intent, bool) {
	if !cmd.contains("volume", "audio", "mute", "unmute") {
		return nil, false
	}

	if n := firstInt.FindString(string(cmd)); n != "" {
		level, err := strconv.Atoi(n)
		if err != nil || level > MaxVolume {
			level = MaxVolume
		}
		return Volume{Op: VolumeSet, Level: level}, true
	}

	switch {
	case cmd.contains("unmute"):
		return Volume{Op: VolumeUnmute}, true
	case cmd.contains("mute"):
		return Volume{Op: VolumeMute}, true
	case cmd.contains("up", "increase"):
		return Volume{Op: VolumeUp}, true
	case cmd.contains("down", "decrease"):
		return Volume{Op: VolumeDown}, true
	}

	return Volume{Op: VolumeNone}, true
}

func mediaTarget(cmd Command) string {
	if cmd.contains("spotify", "music") {
		return "spotify"
	}
	return ""
}

func matchMedia(cmd Command) (Intent, bool) {
	switch {
	case cmd.contains("resume"):
		return Media{Op: MediaPlay, Target: mediaTarget(cmd)}, true
	case cmd.contains("pause"):
		return Media{Op: MediaPause, Target: mediaTarget(cmd)}, true
	case cmd.contains("next", "skip"):
		return Media{Op: MediaNext}, true
	}
	return nil, false
}

func matchSpotifySearch(cmd Command) (Intent, bool) {
	if !cmd.contains("play") || !cmd.contains("spotify") {
		return nil, false
	}

	q := strings.ReplaceAll(string(cmd), "play", "")
	q = strings.ReplaceAll(q, "on spotify", "")

	return SpotifySearch{Query: strings.Join(strings.Fields(q), " ")}, true
}

func matchArithmetic(cmd Command) (Intent, bool) {
	if !cmd.contains(arithmeticTriggers...) {
		return nil, false
	}
	return Arithmetic{Expression: SpokenExpression(cmd)}, true
}

var launchPrefixes = []string{"open ", "launch ", "start "}

// An unknown application name is not a match: the command falls through
// to free-form delegation as spoken.
func (r *Router) matchAppLaunch(cmd Command) (Intent, bool) {
	for _, prefix := range launchPrefixes {
		if !strings.HasPrefix(string(cmd), prefix) {
			continue
		}

		name := strings.TrimSpace(strings.ReplaceAll(string(cmd), prefix, ""))
		app, ok := r.apps.Lookup(name)
		if !ok {
			return nil, false
		}
		return AppLaunch{AppID: name, App: app}, true
	}
	return nil, false
}
