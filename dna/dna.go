// Package dna models the behavioral profile ("DNA") a Crawl Engine session
// uses to shape outbound requests: identity, timing, network, interaction,
// capabilities and temporal genes. DNA is strongly shaped in memory; the
// Store persists it as an opaque JSON blob (see Marshal/Unmarshal).
//
// Mutations are always shallow merges over a single gene — never deep
// merges of the whole structure. See the mutator package.
package dna

// Identity describes the browser/device identity presented to a target.
type Identity struct {
	UserAgent           string `json:"userAgent"`
	ViewportWidth       int    `json:"viewportWidth"`
	ViewportHeight      int    `json:"viewportHeight"`
	Timezone            string `json:"timezone"`
	Language            string `json:"language"`
	Platform            string `json:"platform"`
	ColorDepth          int    `json:"colorDepth"`
	DeviceMemory        int    `json:"deviceMemory"`
	HardwareConcurrency int    `json:"hardwareConcurrency"`
}

// DelayRange is an inclusive millisecond range used to pace requests.
type DelayRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Timing describes the pacing and human-behavior pattern labels.
type Timing struct {
	ReadingSpeed string     `json:"readingSpeed"` // e.g. "average", "fast", "slow"
	TypingSpeed  string     `json:"typingSpeed"`
	ClickPattern string     `json:"clickPattern"`
	ScrollPattern string    `json:"scrollPattern"`
	DelayRange   DelayRange `json:"delayRange"`
}

// Network describes the wire-level shape of outbound requests.
type Network struct {
	Headers         map[string]string `json:"headers"`
	HeaderOrder     []string          `json:"headerOrder"`
	TLSFingerprint  string            `json:"tlsFingerprint"`
	HTTPVersion     string            `json:"httpVersion"`
	AcceptEncoding  string            `json:"acceptEncoding"`
	JA3Hash         string            `json:"ja3Hash,omitempty"`
}

// Interaction describes simulated on-page behavior (used by the optional
// browser-mode acquisition path; ignored by the HTTP-only path).
type Interaction struct {
	MouseMovementModel string `json:"mouseMovementModel"`
	ScrollSpeed        string `json:"scrollSpeed"`
	ClickPrecision     string `json:"clickPrecision"`
	ReadingStrategy    string `json:"readingStrategy"`
	TabSwitching       bool   `json:"tabSwitching"`
}

// Capabilities are booleans describing what the simulated client supports.
type Capabilities struct {
	JSEnabled      bool `json:"jsEnabled"`
	Cookies        bool `json:"cookies"`
	LocalStorage   bool `json:"localStorage"`
	CaptchaSolver  bool `json:"captchaSolver"`
	AltchaSolver   bool `json:"altchaSolver"`
}

// SessionDurationRange is an inclusive second range for a simulated session.
type SessionDurationRange struct {
	MinSeconds int `json:"minSeconds"`
	MaxSeconds int `json:"maxSeconds"`
}

// Temporal describes when a target is allowed to be visited.
type Temporal struct {
	SessionDuration SessionDurationRange `json:"sessionDuration"`
	TimeOfDayPolicy string               `json:"timeOfDayPolicy"`
	DayOfWeekPolicy string               `json:"dayOfWeekPolicy"`
}

// Gene names at, the unit mutations apply to.
const (
	GeneIdentity     = "identity"
	GeneTiming       = "timing"
	GeneNetwork      = "network"
	GeneInteraction  = "interaction"
	GeneCapabilities = "capabilities"
)

// DNA is the full behavioral profile. Temporal is not an independently
// mutable gene per the Mutator's contract (§4.2 names identity, timing,
// network, interaction, capabilities only) but is still part of the wire
// shape per the data model.
type DNA struct {
	Identity     Identity     `json:"identity"`
	Timing       Timing       `json:"timing"`
	Network      Network      `json:"network"`
	Interaction  Interaction  `json:"interaction"`
	Capabilities Capabilities `json:"capabilities"`
	Temporal     Temporal     `json:"temporal"`
}

// DefaultProfile returns the fixed default DNA used by CreateInitial (v1.0.0).
func DefaultProfile() DNA {
	return DNA{
		Identity: Identity{
			UserAgent:           "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
			ViewportWidth:       1920,
			ViewportHeight:      1080,
			Timezone:            "America/New_York",
			Language:            "en-US",
			Platform:            "Win32",
			ColorDepth:          24,
			DeviceMemory:        8,
			HardwareConcurrency: 8,
		},
		Timing: Timing{
			ReadingSpeed:  "average",
			TypingSpeed:   "average",
			ClickPattern:  "natural",
			ScrollPattern: "natural",
			DelayRange:    DelayRange{Min: 1000, Max: 3000},
		},
		Network: Network{
			Headers: map[string]string{
				"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
				"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
				"Accept-Language": "en-US,en;q=0.9",
				"Accept-Encoding": "gzip, deflate, br",
			},
			HeaderOrder:    []string{"User-Agent", "Accept", "Accept-Language", "Accept-Encoding"},
			TLSFingerprint: "chrome-125",
			HTTPVersion:    "h2",
			AcceptEncoding: "gzip, deflate, br",
		},
		Interaction: Interaction{
			MouseMovementModel: "bezier",
			ScrollSpeed:        "natural",
			ClickPrecision:     "human",
			ReadingStrategy:    "skim",
			TabSwitching:       false,
		},
		Capabilities: Capabilities{
			JSEnabled:     true,
			Cookies:       true,
			LocalStorage:  true,
			CaptchaSolver: false,
			AltchaSolver:  false,
		},
		Temporal: Temporal{
			SessionDuration: SessionDurationRange{MinSeconds: 60, MaxSeconds: 600},
			TimeOfDayPolicy: "any",
			DayOfWeekPolicy: "any",
		},
	}
}

// Clone performs a deep copy of d, so callers can mutate the clone's genes
// without aliasing the original's maps/slices. The Mutator always starts
// from a Clone of the currently active DNA.
func (d DNA) Clone() DNA {
	c := d
	c.Timing = d.Timing
	c.Network = Network{
		Headers:        copyStringMap(d.Network.Headers),
		HeaderOrder:    copyStringSlice(d.Network.HeaderOrder),
		TLSFingerprint: d.Network.TLSFingerprint,
		HTTPVersion:    d.Network.HTTPVersion,
		AcceptEncoding: d.Network.AcceptEncoding,
		JA3Hash:        d.Network.JA3Hash,
	}
	c.Interaction = d.Interaction
	c.Capabilities = d.Capabilities
	c.Temporal = d.Temporal
	return c
}

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStringSlice(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
