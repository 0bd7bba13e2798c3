package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var addressRegexp = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Built-in probe sell sizes for deriving USD prices via small quotes.
// Symbols not listed here (and without a probeSizes override) use 0.01 units.
var defaultProbeSizes = map[string]float64{
	"WETH":  0.01,
	"AERO":  10,
	"DEGEN": 100,
}

const defaultProbeSize = 0.01

// Runtime is the validated trading configuration. It is immutable for the
// duration of a tick: the engine receives a snapshot and never re-reads it
// mid-tick.
type Runtime struct {
	ChainID             int                `json:"chainId"`
	Paused              bool               `json:"paused"`
	AdminToken          string             `json:"adminToken"`
	BaseSymbol          string             `json:"baseSymbol,omitempty"`
	Targets             map[string]float64 `json:"targets"`
	Band                float64            `json:"band"`
	MinTradeUsd         float64            `json:"minTradeUsd"`
	MaxTradeUsd         float64            `json:"maxTradeUsd"`
	MaxDailyNotionalUsd float64            `json:"maxDailyNotionalUsd"`
	MaxTradesPerDay     int                `json:"maxTradesPerDay"`
	CooldownMinutes     int                `json:"cooldownMinutes"`
	MaxSlippageBps      int                `json:"maxSlippageBps"`
	PollMinutes         int                `json:"pollMinutes"`
	DrawdownStopPct     float64            `json:"drawdownStopPct"`
	AllowTokens         map[string]string  `json:"allowTokens"`
	ProbeSizes          map[string]float64 `json:"probeSizes,omitempty"`
	QuoteQualityFloor   float64            `json:"quoteQualityFloor"`
	Quote               QuoteSelector      `json:"quote"`

	// TargetOrder preserves the JSON key order of Targets. Drift selection
	// iterates in this order so tie-breaks are deterministic.
	TargetOrder []string `json:"-"`

	// explicit records which defaultable keys the source document carried.
	// An explicit zero is kept and left to Validate; only absent keys pick up
	// defaults. A zero drawdownStopPct disables the stop.
	explicit map[string]bool
}

type QuoteSelector struct {
	Provider string `json:"provider"`
}

// ProbeSize returns the sell size (human units) used to probe a symbol's
// USD price.
func (r *Runtime) ProbeSize(symbol string) float64 {
	if v, ok := r.ProbeSizes[symbol]; ok && v > 0 {
		return v
	}
	if v, ok := defaultProbeSizes[symbol]; ok {
		return v
	}
	return defaultProbeSize
}

// Base returns the settlement-asset symbol (USDC unless overridden).
func (r *Runtime) Base() string {
	if r.BaseSymbol != "" {
		return r.BaseSymbol
	}
	return "USDC"
}

func (r *Runtime) applyDefaults() {
	if r.MinTradeUsd == 0 && !r.explicit["minTradeUsd"] {
		r.MinTradeUsd = 5
	}
	if r.DrawdownStopPct == 0 && !r.explicit["drawdownStopPct"] {
		r.DrawdownStopPct = 0.2
	}
	if r.QuoteQualityFloor == 0 && !r.explicit["quoteQualityFloor"] {
		r.QuoteQualityFloor = 0.88
	}
}

func (r *Runtime) Validate() error {
	var errs []string

	if r.ChainID <= 0 {
		errs = append(errs, "chainId must be positive")
	}
	if len(r.AdminToken) < 8 {
		errs = append(errs, "adminToken must be at least 8 characters")
	}
	if r.Band < 0 || r.Band > 0.5 {
		errs = append(errs, "band must be in [0, 0.5]")
	}
	if r.MinTradeUsd <= 0 {
		errs = append(errs, "minTradeUsd must be positive")
	}
	if r.MaxTradeUsd <= 0 {
		errs = append(errs, "maxTradeUsd must be positive")
	}
	if r.MaxDailyNotionalUsd <= 0 {
		errs = append(errs, "maxDailyNotionalUsd must be positive")
	}
	if r.MaxTradesPerDay <= 0 {
		errs = append(errs, "maxTradesPerDay must be positive")
	}
	if r.CooldownMinutes <= 0 {
		errs = append(errs, "cooldownMinutes must be positive")
	}
	if r.MaxSlippageBps < 1 || r.MaxSlippageBps > 500 {
		errs = append(errs, "maxSlippageBps must be in [1, 500]")
	}
	if r.PollMinutes < 1 || r.PollMinutes > 1440 {
		errs = append(errs, "pollMinutes must be in [1, 1440]")
	}
	if r.DrawdownStopPct < 0 || r.DrawdownStopPct > 0.9 {
		errs = append(errs, "drawdownStopPct must be in [0, 0.9]")
	}
	if r.QuoteQualityFloor < 0.8 || r.QuoteQualityFloor >= 1 {
		errs = append(errs, "quoteQualityFloor must be in [0.8, 1)")
	}
	if r.Quote.Provider != "0x" {
		errs = append(errs, fmt.Sprintf("unsupported quote provider %q", r.Quote.Provider))
	}

	for sym, w := range r.Targets {
		if w < 0 || w > 1 || math.IsNaN(w) {
			errs = append(errs, fmt.Sprintf("target weight for %s must be in [0, 1]", sym))
		}
	}
	for sym, addr := range r.AllowTokens {
		if !addressRegexp.MatchString(addr) {
			errs = append(errs, fmt.Sprintf("allowTokens[%s] is not a valid address", sym))
		}
	}
	if _, ok := r.AllowTokens[r.Base()]; !ok {
		errs = append(errs, fmt.Sprintf("base asset %s must be in allowTokens", r.Base()))
	}

	if len(errs) > 0 {
		return fmt.Errorf("runtime config invalid:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// RuntimeStore reads and writes the runtime config file. It implements the
// config-provider boundary: Read returns a validated, defaulted snapshot and
// Write validates before persisting.
type RuntimeStore struct {
	mu         sync.Mutex
	path       string
	adminToken string // env override for the file's adminToken
}

func NewRuntimeStore(path, adminTokenOverride string) *RuntimeStore {
	return &RuntimeStore{path: path, adminToken: adminTokenOverride}
}

func (s *RuntimeStore) Read() (*Runtime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read runtime config %s: %w", s.path, err)
	}
	return s.parse(raw)
}

func (s *RuntimeStore) parse(raw []byte) (*Runtime, error) {
	var rt Runtime
	if err := json.Unmarshal(raw, &rt); err != nil {
		return nil, fmt.Errorf("parse runtime config: %w", err)
	}

	order, err := targetKeyOrder(raw)
	if err != nil {
		return nil, fmt.Errorf("parse target order: %w", err)
	}
	rt.TargetOrder = order
	rt.explicit = explicitKeys(raw)

	if s.adminToken != "" {
		rt.AdminToken = s.adminToken
	}
	if v := os.Getenv("PAUSED"); v != "" {
		rt.Paused = strings.EqualFold(v, "true")
	}

	rt.applyDefaults()
	if err := rt.Validate(); err != nil {
		return nil, err
	}
	return &rt, nil
}

// DecodeRuntime unmarshals a runtime config document, capturing the key
// order of the targets object. It does not validate; Write does.
func DecodeRuntime(raw []byte) (*Runtime, error) {
	var rt Runtime
	if err := json.Unmarshal(raw, &rt); err != nil {
		return nil, fmt.Errorf("parse runtime config: %w", err)
	}
	order, err := targetKeyOrder(raw)
	if err != nil {
		return nil, fmt.Errorf("parse target order: %w", err)
	}
	rt.TargetOrder = order
	rt.explicit = explicitKeys(raw)
	return &rt, nil
}

// Write validates next and atomically persists it, returning the stored
// config as Read would see it.
func (s *RuntimeStore) Write(next *Runtime) (*Runtime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidate := *next
	candidate.applyDefaults()
	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	raw, err := encodeRuntime(&candidate)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return nil, err
	}

	return s.parse(raw)
}

// SetPaused flips only the pause flag, preserving everything else.
func (s *RuntimeStore) SetPaused(paused bool) (*Runtime, error) {
	cur, err := s.Read()
	if err != nil {
		return nil, err
	}
	cur.Paused = paused
	return s.Write(cur)
}

// encodeRuntime marshals rt with the targets object emitted in TargetOrder,
// so the documented iteration order survives a round-trip through Write.
func encodeRuntime(rt *Runtime) ([]byte, error) {
	type alias Runtime
	a := alias(*rt)
	a.Targets = nil

	base, err := json.MarshalIndent(&a, "", "  ")
	if err != nil {
		return nil, err
	}

	var targets bytes.Buffer
	targets.WriteByte('{')
	for i, sym := range orderedSymbols(rt) {
		if i > 0 {
			targets.WriteByte(',')
		}
		key, _ := json.Marshal(sym)
		targets.Write(key)
		targets.WriteByte(':')
		val, _ := json.Marshal(rt.Targets[sym])
		targets.Write(val)
	}
	targets.WriteByte('}')

	// Splice the ordered targets object back in: the alias marshals
	// "targets":null.
	out := bytes.Replace(base, []byte(`"targets": null`),
		append([]byte(`"targets": `), targets.Bytes()...), 1)
	return append(out, '\n'), nil
}

func orderedSymbols(rt *Runtime) []string {
	seen := make(map[string]bool, len(rt.Targets))
	var out []string
	for _, sym := range rt.TargetOrder {
		if _, ok := rt.Targets[sym]; ok && !seen[sym] {
			out = append(out, sym)
			seen[sym] = true
		}
	}
	// Symbols added to Targets without an order entry go last, sorted so the
	// result stays deterministic.
	var missing []string
	for sym := range rt.Targets {
		if !seen[sym] {
			missing = append(missing, sym)
		}
	}
	sort.Strings(missing)
	return append(out, missing...)
}

// explicitKeys reports which defaultable top-level keys the document names.
func explicitKeys(raw []byte) map[string]bool {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil
	}
	out := make(map[string]bool, 3)
	for _, key := range []string{"minTradeUsd", "drawdownStopPct", "quoteQualityFloor"} {
		if _, ok := top[key]; ok {
			out[key] = true
		}
	}
	return out
}

// targetKeyOrder extracts the key order of the top-level "targets" object.
func targetKeyOrder(raw []byte) ([]string, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, err
	}
	obj, ok := top["targets"]
	if !ok {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(obj))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if tok != json.Delim('{') {
		return nil, fmt.Errorf("targets must be an object")
	}

	var keys []string
	for dec.More() {
		key, err := dec.Token()
		if err != nil {
			return nil, err
		}
		keys = append(keys, key.(string))
		if _, err := dec.Token(); err != nil { // weight value
			return nil, err
		}
	}
	return keys, nil
}
