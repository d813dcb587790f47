package spmdsim

import (
	"encoding/json"
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

// A TerminationDesc configures the resistive terminations placed at the
// trunk ends.  RTerm of 0 leaves the ends open.
type TerminationDesc struct {
	RTerm float64 `json:"rterm" yaml:"rterm"`
}

// A SimCfg describes one sweep experiment: the frequency grid, the trunk
// and drop geometry, the cable constants, the PHY dataset, and the output
// targets.  Fields absent from a configuration file keep their defaults.
type SimCfg struct {
	// only "ac" is defined
	Analysis string `json:"analysis" yaml:"analysis"`

	// sweep grid, Hz
	FreqStart float64 `json:"freq_start" yaml:"freq_start"`
	FreqStop  float64 `json:"freq_stop" yaml:"freq_stop"`
	NPoints   int     `json:"npoints" yaml:"npoints"`

	// source and port reference impedance, ohm
	Z0 float64 `json:"z0" yaml:"z0"`

	// number of drops along the trunk; 0 means a bare trunk driven from
	// its start junction
	Nodes int `json:"nodes" yaml:"nodes"`

	// trunk length, meters
	Length float64 `json:"length" yaml:"length"`

	// drop stub length in meters, or its upper bound when random_drop
	DropMax    float64 `json:"drop_max" yaml:"drop_max"`
	RandomDrop bool    `json:"random_drop" yaml:"random_drop"`

	// explicit drop positions along the trunk in meters; null lets the
	// builder place them
	AttachPoints []float64 `json:"attach_points" yaml:"attach_points"`

	// automatic placement controls
	RandomAttach  bool    `json:"random_attach" yaml:"random_attach"`
	SeparationMin float64 `json:"separation_min" yaml:"separation_min"`
	StartPad      float64 `json:"start_pad" yaml:"start_pad"`
	EndPad        float64 `json:"end_pad" yaml:"end_pad"`
	StartAttach   int     `json:"start_attach" yaml:"start_attach"`
	EndAttach     int     `json:"end_attach" yaml:"end_attach"`
	AttachError   float64 `json:"attach_error" yaml:"attach_error"`

	// random stream seed; negative leaves the stream at its default state
	Seed int64 `json:"seed" yaml:"seed"`

	// transmitting drop (1-based); receive probe, 0 for the far trunk end
	TxNode int `json:"tx_node" yaml:"tx_node"`
	RxNode int `json:"rx_node" yaml:"rx_node"`

	// Touchstone file holding the PHY two-port, required when nodes > 0
	S2P string `json:"s2p" yaml:"s2p"`

	CableModel  CableModel      `json:"cable_model" yaml:"cable_model"`
	Termination TerminationDesc `json:"termination" yaml:"termination"`

	// sweep execution: worker count (0 means GOMAXPROCS) and the policy
	// for per-frequency solve failures
	Workers  int  `json:"workers" yaml:"workers"`
	FailFast bool `json:"fail_fast" yaml:"fail_fast"`

	// output paths; empty skips the writer
	CSV  string `json:"csv" yaml:"csv"`
	Plot string `json:"plot" yaml:"plot"`
}

// DefaultSimCfg returns a configuration pre-loaded with the defaults of
// every field, modeling a 100 m trunk with 16 drops of belden-like twisted
// pair swept from 100 kHz to 40 MHz.
func DefaultSimCfg() *SimCfg {
	return &SimCfg{
		Analysis:      "ac",
		FreqStart:     1e5,
		FreqStop:      4e7,
		NPoints:       400,
		Z0:            100.0,
		Nodes:         16,
		Length:        100.0,
		DropMax:       0.02,
		SeparationMin: 1.0,
		Seed:          -1,
		TxNode:        1,
		RxNode:        0,
		CableModel: CableModel{
			RDC:       0.0094,
			L:         20.6435e-9,
			C:         2.25026e-12,
			RSkin:     1.134268e-5,
			RefLength: 0.05,
		},
		Termination: TerminationDesc{RTerm: 100.0},
	}
}

// ReadSimCfg deserializes a byte slice holding a representation of a SimCfg
// struct.  If the input argument of dict (those bytes) is empty, the file
// whose name is given is read to acquire them.  Decoding starts from the
// defaults, so a partial configuration overrides only the keys it carries.
// A deserialized representation is returned, or an error if one is
// generated from a file read or the deserialization.
func ReadSimCfg(filename string, useYAML bool, dict []byte) (*SimCfg, error) {
	var err error
	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	example := DefaultSimCfg()
	if useYAML {
		err = yaml.Unmarshal(dict, example)
	} else {
		err = json.Unmarshal(dict, example)
	}

	if err != nil {
		return nil, err
	}

	return example, nil
}

// WriteToFile stores the SimCfg struct to the file whose name is given.
// Serialization to json or to yaml is selected based on the extension of
// this name.
func (cfg *SimCfg) WriteToFile(filename string) error {
	pathExt := path.Ext(filename)
	var bytes []byte
	var merr error = nil

	if pathExt == ".yaml" || pathExt == ".YAML" || pathExt == ".yml" {
		bytes, merr = yaml.Marshal(*cfg)
	} else if pathExt == ".json" || pathExt == ".JSON" {
		bytes, merr = json.MarshalIndent(*cfg, "", "\t")
	}

	if merr != nil {
		return merr
	}

	f, cerr := os.Create(filename)
	if cerr != nil {
		return cerr
	}
	_, werr := f.WriteString(string(bytes[:]))
	f.Close()

	return werr
}

// Validate checks the grid and geometry ranges that must hold before any
// topology can be elaborated from the configuration.
func (cfg *SimCfg) Validate() error {
	if cfg.Analysis != "ac" {
		return fmt.Errorf("analysis %q is not supported, only \"ac\"", cfg.Analysis)
	}
	if cfg.FreqStart <= 0 {
		return fmt.Errorf("freq_start %g Hz must be positive", cfg.FreqStart)
	}
	if cfg.FreqStop < cfg.FreqStart {
		return fmt.Errorf("freq_stop %g Hz is below freq_start %g Hz", cfg.FreqStop, cfg.FreqStart)
	}
	if cfg.NPoints < 1 {
		return fmt.Errorf("npoints %d must be at least 1", cfg.NPoints)
	}
	if cfg.Z0 <= 0 {
		return fmt.Errorf("z0 %g ohm must be positive", cfg.Z0)
	}
	if cfg.Length <= 0 {
		return &InvalidTopologyError{Field: "length",
			Msg: fmt.Sprintf("trunk length %g m must be positive", cfg.Length)}
	}
	if cfg.Nodes < 0 {
		return &InvalidTopologyError{Field: "nodes",
			Msg: fmt.Sprintf("drop count %d must not be negative", cfg.Nodes)}
	}
	if cfg.Nodes > 0 && len(cfg.S2P) == 0 {
		return &InvalidTopologyError{Field: "s2p",
			Msg: "a Touchstone file is required when nodes > 0"}
	}
	if cfg.DropMax < 0 {
		return &InvalidTopologyError{Field: "drop_max",
			Msg: fmt.Sprintf("drop length %g m must not be negative", cfg.DropMax)}
	}
	if cfg.Termination.RTerm < 0 {
		return &InvalidTopologyError{Field: "rterm",
			Msg: fmt.Sprintf("termination %g ohm must not be negative", cfg.Termination.RTerm)}
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("workers %d must not be negative", cfg.Workers)
	}
	return nil
}
