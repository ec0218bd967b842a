package nlu

type Kind string

const (
	KindVolume        Kind = "volume"
	KindMedia         Kind = "media"
	KindSpotifySearch Kind = "spotify_search"
	KindArithmetic    Kind = "arithmetic"
	KindAppLaunch     Kind = "app_launch"
	KindFreeForm      Kind = "free_form"
)

// Intent is one of Volume, Media, SpotifySearch, Arithmetic, AppLaunch or
// FreeForm. Every command routes to exactly one of them.
type Intent interface {
	Kind() Kind
}

type VolumeOp string

const (
	VolumeSet    VolumeOp = "set"
	VolumeMute   VolumeOp = "mute"
	VolumeUnmute VolumeOp = "unmute"
	VolumeUp     VolumeOp = "up"
	VolumeDown   VolumeOp = "down"
	// VolumeNone is a volume command without a recognizable action.
	VolumeNone VolumeOp = "none"
)

const MaxVolume = 120

type Volume struct {
	Op    VolumeOp
	Level int // only for VolumeSet, 0..MaxVolume
}

type MediaOp string

const (
	MediaPlay  MediaOp = "play"
	MediaPause MediaOp = "pause"
	MediaNext  MediaOp = "next"
)

type Media struct {
	Op     MediaOp
	Target string // player name, empty for whatever is playing
}

type SpotifySearch struct {
	Query string
}

type Arithmetic struct {
	Expression string // already reduced to the allow-listed characters
}

type AppLaunch struct {
	AppID string
	App   AppDescriptor
}

type FreeForm struct {
	Text string
}

func (Volume) Kind() Kind        { return KindVolume }
func (Media) Kind() Kind         { return KindMedia }
func (SpotifySearch) Kind() Kind { return KindSpotifySearch }
func (Arithmetic) Kind() Kind    { return KindArithmetic }
func (AppLaunch) Kind() Kind     { return KindAppLaunch }
func (FreeForm) Kind() Kind      { return KindFreeForm }
