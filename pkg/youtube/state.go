package youtube

import "strconv"

// State is the numeric player state reported by the player API.
type State int

// Player states.
const (
	StateUnstarted State = -1
	StateEnded     State = 0
	StatePlaying   State = 1
	StatePaused    State = 2
	StateBuffering State = 3
	StateCued      State = 5
)

// States lists every known state in the order they are reported in
// snapshots.
var States = []State{
	StateUnstarted,
	StateEnded,
	StatePlaying,
	StatePaused,
	StateBuffering,
	StateCued,
}

// Name returns the lowercase snapshot name of s, or its number for states the
// API has not documented.
func (s State) Name() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateEnded:
		return "ended"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateBuffering:
		return "buffering"
	case StateCued:
		return "cued"
	default:
		return strconv.Itoa(int(s))
	}
}

// ErrorCode is the numeric code delivered with OnError.
type ErrorCode int

// Player error codes.
const (
	ErrInvalidURL                ErrorCode = 2
	ErrHTML5                     ErrorCode = 5
	ErrVideoNotFound             ErrorCode = 100
	ErrMissingEmbedPermission    ErrorCode = 101
	ErrMissingEmbedPermissionAlt ErrorCode = 150
)

// Name returns the constant-case name of the error code.
func (c ErrorCode) Name() string {
	switch c {
	case ErrInvalidURL:
		return "INVALID_URL"
	case ErrHTML5:
		return "HTML5_ERROR"
	case ErrVideoNotFound:
		return "VIDEO_NOT_FOUND"
	case ErrMissingEmbedPermission:
		return "MISSING_EMBED_PERMISSION"
	case ErrMissingEmbedPermissionAlt:
		return "MISSING_EMBED_PERMISSION_ALT"
	default:
		return "UNKNOWN_ERROR_" + strconv.Itoa(int(c))
	}
}

// Query-string parameters of the embed URL.
const (
	ParamAutoplay       = "autoplay"
	ParamControls       = "controls"
	ParamDisableKB      = "disablekb"
	ParamEnableJSAPI    = "enablejsapi"
	ParamEnd            = "end"
	ParamFullscreen     = "fs"
	ParamIVLoadPolicy   = "iv_load_policy"
	ParamLanguage       = "hl"
	ParamList           = "list"
	ParamListType       = "listtype"
	ParamLoop           = "loop"
	ParamModestBranding = "modestbranding"
	ParamOrigin         = "origin"
	ParamPlaylist       = "playlist"
	ParamPlaysInline    = "playsinline"
	ParamRelated        = "rel"
	ParamStart          = "start"
	ParamWidgetReferrer = "widget_referrer"
)
