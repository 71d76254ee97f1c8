package sim

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/OCAP2/mediatrack/pkg/youtube"
	"gopkg.in/yaml.v3"
)

// Action is a scripted viewer interaction.
type Action string

// Scripted actions.
const (
	ActionPlay      Action = "play"
	ActionPause     Action = "pause"
	ActionStop      Action = "stop"
	ActionSeek      Action = "seek"
	ActionVolume    Action = "volume"
	ActionMute      Action = "mute"
	ActionUnmute    Action = "unmute"
	ActionRate      Action = "rate"
	ActionQuality   Action = "quality"
	ActionError     Action = "error"
	ActionAPIChange Action = "apichange"
	ActionLook      Action = "look"
)

// Script is a simulated page session.
type Script struct {
	IFrames  []ScriptIFrame `yaml:"iframes"`
	Steps    []Step         `yaml:"steps"`
	Duration time.Duration  `yaml:"duration"`
}

// ScriptIFrame places an iframe on the page and optionally enables tracking
// for it.
type ScriptIFrame struct {
	ID    string `yaml:"id"`
	Src   string `yaml:"src"`
	Video Video  `yaml:"video"`
	Track bool   `yaml:"track"`
}

// Step is one action at an offset from the API becoming ready.
type Step struct {
	At     time.Duration `yaml:"at"`
	Player string        `yaml:"player"`
	Action Action        `yaml:"action"`
	Value  float64       `yaml:"value,omitempty"`
	Text   string        `yaml:"text,omitempty"`
}

// LoadScript reads a YAML script from path.
func LoadScript(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening script: %w", err)
	}
	defer f.Close()
	return ParseScript(f)
}

// ParseScript decodes a YAML script and validates its steps.
func ParseScript(r io.Reader) (*Script, error) {
	var s Script
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding script: %w", err)
	}

	ids := make(map[string]bool, len(s.IFrames))
	for _, f := range s.IFrames {
		if f.ID == "" {
			return nil, errors.New("iframe without id")
		}
		ids[f.ID] = true
	}
	for i, st := range s.Steps {
		if !ids[st.Player] {
			return nil, fmt.Errorf("step %d: unknown player %q", i, st.Player)
		}
		if !st.Action.valid() {
			return nil, fmt.Errorf("step %d: unknown action %q", i, st.Action)
		}
	}
	sort.SliceStable(s.Steps, func(i, j int) bool { return s.Steps[i].At < s.Steps[j].At })

	if s.Duration == 0 && len(s.Steps) > 0 {
		s.Duration = s.Steps[len(s.Steps)-1].At + time.Second
	}
	return &s, nil
}

func (a Action) valid() bool {
	switch a {
	case ActionPlay, ActionPause, ActionStop, ActionSeek, ActionVolume, ActionMute,
		ActionUnmute, ActionRate, ActionQuality, ActionError, ActionAPIChange, ActionLook:
		return true
	}
	return false
}

// Setup places the script's iframes on env.
func (s *Script) Setup(env *Environment) {
	for _, f := range s.IFrames {
		env.AddIFrame(f.ID, f.Src, f.Video)
	}
}

// Schedule arranges for every step to run on env's scheduler, relative to
// the time Schedule is called. Steps for players that were never created are
// skipped.
func (s *Script) Schedule(env *Environment) {
	for _, st := range s.Steps {
		env.sched.AfterFunc(st.At, func() {
			if p, ok := env.Player(st.Player); ok {
				st.apply(p)
			}
		})
	}
}

func (st Step) apply(p *Player) {
	switch st.Action {
	case ActionPlay:
		p.Play()
	case ActionPause:
		p.Pause()
	case ActionStop:
		p.Stop()
	case ActionSeek:
		p.SeekTo(st.Value)
	case ActionVolume:
		p.SetVolume(int(st.Value))
	case ActionMute:
		p.Mute()
	case ActionUnmute:
		p.UnMute()
	case ActionRate:
		p.SetPlaybackRate(st.Value)
	case ActionQuality:
		p.SetPlaybackQuality(st.Text)
	case ActionError:
		p.Fail(youtube.ErrorCode(st.Value))
	case ActionAPIChange:
		p.ChangeAPI()
	case ActionLook:
		sp := p.spherical
		sp.Yaw = st.Value
		p.Look(sp)
	}
}
