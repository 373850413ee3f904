// Package config loads the bench settings: where the hardware lives, how to
// reach it, and the per-board sweep tables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/bpm-calibrate/internal/bpm"
	"github.com/banshee-data/bpm-calibrate/internal/experiment"
	"github.com/banshee-data/bpm-calibrate/internal/fcs"
	"github.com/banshee-data/bpm-calibrate/internal/sweep"
)

// DefaultSettingsPath is read when it exists and no path is given.
const DefaultSettingsPath = "bpmcal.yaml"

// RFFE transports.
const (
	TransportExec   = "exec"
	TransportSerial = "serial"
)

// BoardProfile is the sweep table for one RF front-end revision.
type BoardProfile struct {
	// Gains and Thresholds are per stage, in dB and dBm.
	Gains      []float64 `yaml:"gains,omitempty" json:"gains,omitempty"`
	Thresholds []float64 `yaml:"thresholds,omitempty" json:"thresholds,omitempty"`
	// Attenuation is the candidate range of every stage, "min:max:step".
	Attenuation *string `yaml:"attenuation,omitempty" json:"attenuation,omitempty"`
	// Host is the RFFE controller address used when rffe_host is unset.
	Host *string `yaml:"host,omitempty" json:"host,omitempty"`
}

// Settings are the bench settings. Every field is optional; the Get*
// methods supply defaults.
type Settings struct {
	FCSClient *string `yaml:"fcs_client,omitempty" json:"fcs_client,omitempty"`
	FPGAHost  *string `yaml:"fpga_host,omitempty" json:"fpga_host,omitempty"`
	RFFEHost  *string `yaml:"rffe_host,omitempty" json:"rffe_host,omitempty"`

	// RFFETransport is "exec" (through fcs_client) or "serial".
	RFFETransport *string          `yaml:"rffe_transport,omitempty" json:"rffe_transport,omitempty"`
	SerialPort    *string          `yaml:"serial_port,omitempty" json:"serial_port,omitempty"`
	Serial        *fcs.PortOptions `yaml:"serial,omitempty" json:"serial,omitempty"`

	SettleDelay    *string `yaml:"settle_delay,omitempty" json:"settle_delay,omitempty"`       // duration string like "200ms"
	TriggerTimeout *string `yaml:"trigger_timeout,omitempty" json:"trigger_timeout,omitempty"` // "0" waits forever

	ErrorPolicy *string  `yaml:"error_policy,omitempty" json:"error_policy,omitempty"`
	Datapaths   []string `yaml:"datapaths,omitempty" json:"datapaths,omitempty"`
	LedgerPath  *string  `yaml:"ledger_path,omitempty" json:"ledger_path,omitempty"`
	MaxIndex    *int     `yaml:"max_index,omitempty" json:"max_index,omitempty"`
	PhaseRange  *string  `yaml:"phase_range,omitempty" json:"phase_range,omitempty"`

	// Boards is keyed by board version name ("rffe_v1", "rffe_v2"). Entries
	// override the built-in tables field by field.
	Boards map[string]*BoardProfile `yaml:"boards,omitempty" json:"boards,omitempty"`
}

func ptrString(v string) *string { return &v }

var builtinBoards = map[bpm.BoardVersion]BoardProfile{
	bpm.BoardV1: {
		Gains:       []float64{13, 17},
		Thresholds:  []float64{0, 0},
		Attenuation: ptrString("0:30:7"),
		Host:        ptrString("10.0.17.200"),
	},
	bpm.BoardV2: {
		Gains:       []float64{17},
		Thresholds:  []float64{0},
		Attenuation: ptrString("0:30:5"),
		Host:        ptrString("10.0.17.201"),
	},
}

// EmptySettings returns Settings with every field unset.
func EmptySettings() *Settings {
	return &Settings{}
}

// LoadSettings reads a YAML (.yaml, .yml) or JSON (.json) settings file.
// Omitted fields keep their defaults.
func LoadSettings(path string) (*Settings, error) {
	cleanPath := filepath.Clean(path)

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat settings file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("settings file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	s := EmptySettings()
	switch ext := filepath.Ext(cleanPath); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("failed to parse settings YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("failed to parse settings JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("settings file must be .yaml, .yml or .json, got %q", ext)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// LoadOrDefault loads path, or DefaultSettingsPath when path is empty and
// that file exists. Otherwise it returns empty settings.
func LoadOrDefault(path string) (*Settings, error) {
	if path != "" {
		return LoadSettings(path)
	}
	if _, err := os.Stat(DefaultSettingsPath); err == nil {
		return LoadSettings(DefaultSettingsPath)
	}
	return EmptySettings(), nil
}

// Validate checks the values that are set.
func (s *Settings) Validate() error {
	if s.RFFETransport != nil {
		switch *s.RFFETransport {
		case TransportExec:
		case TransportSerial:
			if s.SerialPort == nil || *s.SerialPort == "" {
				return fmt.Errorf("rffe_transport %q requires serial_port", TransportSerial)
			}
		default:
			return &bpm.ChoiceError{Field: "rffe_transport", Value: *s.RFFETransport, Choices: []string{TransportExec, TransportSerial}}
		}
	}

	if s.SettleDelay != nil && *s.SettleDelay != "" {
		if _, err := time.ParseDuration(*s.SettleDelay); err != nil {
			return fmt.Errorf("invalid settle_delay '%s': %w", *s.SettleDelay, err)
		}
	}
	if s.TriggerTimeout != nil && *s.TriggerTimeout != "" {
		d, err := time.ParseDuration(*s.TriggerTimeout)
		if err != nil {
			return fmt.Errorf("invalid trigger_timeout '%s': %w", *s.TriggerTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("trigger_timeout must be non-negative, got %s", d)
		}
	}

	if s.ErrorPolicy != nil {
		if _, err := sweep.ParseErrorPolicy(*s.ErrorPolicy); err != nil {
			return err
		}
	}
	if len(s.Datapaths) > 0 {
		if _, err := bpm.ParseDatapaths(s.Datapaths); err != nil {
			return err
		}
	}
	if s.MaxIndex != nil && *s.MaxIndex <= 0 {
		return fmt.Errorf("max_index must be positive, got %d", *s.MaxIndex)
	}
	if s.PhaseRange != nil {
		if _, err := sweep.ParseIntRangeSpec(*s.PhaseRange); err != nil {
			return fmt.Errorf("invalid phase_range: %w", err)
		}
	}

	for name, b := range s.Boards {
		if v, err := bpm.ParseBoardVersion(name); err != nil || v.String() != name {
			return &bpm.ChoiceError{Field: "boards key", Value: name, Choices: []string{bpm.BoardV1.String(), bpm.BoardV2.String()}}
		}
		if b == nil {
			continue
		}
		if b.Attenuation != nil {
			if _, err := sweep.ParseRangeSpec(*b.Attenuation); err != nil {
				return fmt.Errorf("boards.%s.attenuation: %w", name, err)
			}
		}
		if len(b.Gains) != len(b.Thresholds) && len(b.Gains) > 0 && len(b.Thresholds) > 0 {
			return fmt.Errorf("boards.%s: %d gains but %d thresholds", name, len(b.Gains), len(b.Thresholds))
		}
	}

	if s.Serial != nil {
		if _, err := s.Serial.Normalize(); err != nil {
			return fmt.Errorf("serial: %w", err)
		}
	}
	return nil
}

// GetFCSClient returns the fcs_client program path.
func (s *Settings) GetFCSClient() string {
	if s.FCSClient == nil || *s.FCSClient == "" {
		return fcs.DefaultProgram
	}
	return *s.FCSClient
}

// GetFPGAHost returns the logic device host name.
func (s *Settings) GetFPGAHost() string {
	if s.FPGAHost == nil || *s.FPGAHost == "" {
		return "localhost"
	}
	return *s.FPGAHost
}

// GetRFFEHost returns rffe_host, or the board profile's host for v.
func (s *Settings) GetRFFEHost(v bpm.BoardVersion) string {
	if s.RFFEHost != nil && *s.RFFEHost != "" {
		return *s.RFFEHost
	}
	if b := s.Board(v); b.Host != nil {
		return *b.Host
	}
	return ""
}

// GetRFFETransport returns the RF front-end transport.
func (s *Settings) GetRFFETransport() string {
	if s.RFFETransport == nil || *s.RFFETransport == "" {
		return TransportExec
	}
	return *s.RFFETransport
}

// GetSerialPort returns the serial device path, empty when unset.
func (s *Settings) GetSerialPort() string {
	if s.SerialPort == nil {
		return ""
	}
	return *s.SerialPort
}

// GetSerialOptions returns the serial port options; unset fields take
// their defaults when the port is opened.
func (s *Settings) GetSerialOptions() fcs.PortOptions {
	if s.Serial == nil {
		return fcs.PortOptions{}
	}
	return *s.Serial
}

// GetSettleDelay returns the pause after the RFFE push.
func (s *Settings) GetSettleDelay() time.Duration {
	if s.SettleDelay == nil || *s.SettleDelay == "" {
		return experiment.DefaultSettleDelay
	}
	d, err := time.ParseDuration(*s.SettleDelay)
	if err != nil {
		return experiment.DefaultSettleDelay
	}
	return d
}

// GetTriggerTimeout returns the trigger bound. Zero waits forever.
func (s *Settings) GetTriggerTimeout() time.Duration {
	if s.TriggerTimeout == nil || *s.TriggerTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(*s.TriggerTimeout)
	if err != nil {
		return 0
	}
	return d
}

// GetErrorPolicy returns the sweep failure policy.
func (s *Settings) GetErrorPolicy() sweep.ErrorPolicy {
	if s.ErrorPolicy == nil {
		return sweep.PolicyAbort
	}
	p, err := sweep.ParseErrorPolicy(*s.ErrorPolicy)
	if err != nil {
		return sweep.PolicyAbort
	}
	return p
}

// GetDatapaths returns the datapaths each run acquires, all three by
// default.
func (s *Settings) GetDatapaths() []bpm.Datapath {
	if len(s.Datapaths) == 0 {
		return append([]bpm.Datapath(nil), bpm.AllDatapaths...)
	}
	ds, err := bpm.ParseDatapaths(s.Datapaths)
	if err != nil {
		return append([]bpm.Datapath(nil), bpm.AllDatapaths...)
	}
	return ds
}

// GetLedgerPath returns the ledger database path relative to the output
// directory when not absolute.
func (s *Settings) GetLedgerPath() string {
	if s.LedgerPath == nil || *s.LedgerPath == "" {
		return "bpmcal.db"
	}
	return *s.LedgerPath
}

// GetMaxIndex returns the allocator's search bound.
func (s *Settings) GetMaxIndex() int {
	if s.MaxIndex == nil {
		return experiment.DefaultMaxIndex
	}
	return *s.MaxIndex
}

// GetPhaseRange returns the deswitching phase sweep range.
func (s *Settings) GetPhaseRange() sweep.IntRangeSpec {
	def := sweep.IntRangeSpec{Min: 20, Max: 59, Step: 1}
	if s.PhaseRange == nil {
		return def
	}
	r, err := sweep.ParseIntRangeSpec(*s.PhaseRange)
	if err != nil {
		return def
	}
	return r
}

// Board returns the profile for v: the built-in table with any
// configured fields laid over it.
func (s *Settings) Board(v bpm.BoardVersion) BoardProfile {
	b := builtinBoards[v]
	o := s.Boards[v.String()]
	if o == nil {
		return b
	}
	if len(o.Gains) > 0 {
		b.Gains = o.Gains
	}
	if len(o.Thresholds) > 0 {
		b.Thresholds = o.Thresholds
	}
	if o.Attenuation != nil {
		b.Attenuation = o.Attenuation
	}
	if o.Host != nil {
		b.Host = o.Host
	}
	return b
}

// AttenuationValues expands the profile's attenuation range.
func (b BoardProfile) AttenuationValues() ([]float64, error) {
	if b.Attenuation == nil {
		return nil, fmt.Errorf("board profile has no attenuation range")
	}
	r, err := sweep.ParseRangeSpec(*b.Attenuation)
	if err != nil {
		return nil, err
	}
	vals := r.Values()
	if len(vals) == 0 {
		return nil, fmt.Errorf("attenuation range %s is empty", *b.Attenuation)
	}
	return vals, nil
}

// Budget returns the power budget for a carrier of maxPower dBm.
func (b BoardProfile) Budget(maxPower float64) *sweep.PowerBudget {
	return &sweep.PowerBudget{MaxPower: maxPower, Gains: b.Gains, Thresholds: b.Thresholds}
}
