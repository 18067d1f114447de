package bridge

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// JointCount is the number of physical joint slots in the hubo-ach protocol.
const JointCount = 42

// SensorCount is the number of force-torque and inertial sensor slots.
const SensorCount = FTCount + IMUCount

// FTCount and IMUCount size the sensor blocks of the state frame.
const (
	FTCount  = 4
	IMUCount = 3
)

// JointParams holds the actuator parameters of a physical joint.
type JointParams struct {
	MotorNo   int     `yaml:"motor_no"`
	JMC       int     `yaml:"jmc"` // motor controller board
	CAN       int     `yaml:"can"`
	Drive     float64 `yaml:"drive"`  // drive pulley teeth
	Driven    float64 `yaml:"driven"` // driven pulley teeth
	Harmonic  float64 `yaml:"harmonic"`
	Encoder   float64 `yaml:"encoder"` // counts per motor revolution
	Direction float64 `yaml:"direction"`
}

// JointDescriptor describes one physical joint slot. ID equals its index in
// the catalog.
type JointDescriptor struct {
	ID     int
	Name   string
	Active bool
	Params JointParams
}

// SensorDescriptor describes one force-torque or inertial sensor.
type SensorDescriptor struct {
	ID     int
	Name   string
	Board  int
	Active bool
}

// Catalog is the physical robot's joint and sensor set.
type Catalog struct {
	Joints  [JointCount]JointDescriptor
	Sensors [SensorCount]SensorDescriptor
}

// hubo-ach slot order. Empty names are unused slots.
var huboJointNames = [JointCount]string{
	"WST", "NKY", "NK1", "NK2",
	"LSP", "LSR", "LSY", "LEB", "LWY", "LWR", "LWP",
	"RSP", "RSR", "RSY", "REB", "RWY", "RWR", "RWP",
	"",
	"LHY", "LHR", "LHP", "LKN", "LAP", "LAR",
	"",
	"RHY", "RHR", "RHP", "RKN", "RAP", "RAR",
	"RF1", "RF2", "RF3", "RF4", "RF5",
	"LF1", "LF2", "LF3", "LF4", "LF5",
}

var huboSensorNames = [SensorCount]string{
	"FT_R_HAND", "FT_L_HAND", "FT_R_FOOT", "FT_L_FOOT",
	"IMU0", "IMU1", "IMU2",
}

// DefaultCatalog returns the stock Hubo+ joint set with default actuator
// parameters. Every named slot is active.
func DefaultCatalog() *Catalog {
	c := &Catalog{}
	for i, name := range huboJointNames {
		c.Joints[i] = JointDescriptor{
			ID:     i,
			Name:   name,
			Active: name != "",
			Params: JointParams{
				MotorNo:   i % 2,
				JMC:       i / 2,
				CAN:       i % 2,
				Drive:     1,
				Driven:    1,
				Harmonic:  100,
				Encoder:   4000,
				Direction: 1,
			},
		}
	}
	for i, name := range huboSensorNames {
		c.Sensors[i] = SensorDescriptor{ID: i, Name: name, Board: 0x2F + i, Active: true}
	}
	return c
}

// Lookup returns the physical ID of the named joint.
func (c *Catalog) Lookup(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	for i := range c.Joints {
		if c.Joints[i].Name == name {
			return i, true
		}
	}
	return 0, false
}

// Validate checks slot IDs, active slots have names, and names are unique.
func (c *Catalog) Validate() error {
	seen := make(map[string]int, JointCount)
	for i := range c.Joints {
		j := &c.Joints[i]
		if j.ID != i {
			return &CatalogError{Joint: jointLabel(j), Reason: fmt.Sprintf("id %d stored in slot %d", j.ID, i)}
		}
		if j.Name == "" {
			if j.Active {
				return &CatalogError{Joint: jointLabel(j), Reason: "active slot has no name"}
			}
			continue
		}
		if prev, dup := seen[j.Name]; dup {
			return &CatalogError{Joint: j.Name, Reason: fmt.Sprintf("duplicate name in slots %d and %d", prev, i)}
		}
		seen[j.Name] = i
	}
	return nil
}

func jointLabel(j *JointDescriptor) string {
	if j.Name == "" {
		return fmt.Sprintf("#%d", j.ID)
	}
	return j.Name
}

// JointTable is the on-disk override of the default catalog, the analogue of
// hubo-ach's joint.table. Only listed joints are changed; nil fields keep the
// default.
type JointTable struct {
	Joints []JointTableEntry `yaml:"joints"`
}

// JointTableEntry overrides one joint, matched by name.
type JointTableEntry struct {
	Name      string   `yaml:"name"`
	ID        *int     `yaml:"id"`
	Active    *bool    `yaml:"active"`
	MotorNo   *int     `yaml:"motor_no"`
	JMC       *int     `yaml:"jmc"`
	CAN       *int     `yaml:"can"`
	Drive     *float64 `yaml:"drive"`
	Driven    *float64 `yaml:"driven"`
	Harmonic  *float64 `yaml:"harmonic"`
	Encoder   *float64 `yaml:"encoder"`
	Direction *float64 `yaml:"direction"`
}

// LoadCatalog returns the default catalog with the joint table at path
// applied. An empty path returns the default catalog.
func LoadCatalog(path string) (*Catalog, error) {
	c := DefaultCatalog()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading joint table: %w", err)
	}
	var table JointTable
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&table); err != nil {
		return nil, fmt.Errorf("parsing joint table %s: %w", path, err)
	}
	if err := c.Apply(&table); err != nil {
		return nil, err
	}
	return c, nil
}

// Apply merges table entries into the catalog, then validates the result.
func (c *Catalog) Apply(table *JointTable) error {
	touched := make(map[string]bool, len(table.Joints))
	for _, e := range table.Joints {
		if e.Name == "" {
			return &CatalogError{Joint: "<unnamed>", Reason: "joint table entry without a name"}
		}
		if touched[e.Name] {
			return &CatalogError{Joint: e.Name, Reason: "listed twice in joint table"}
		}
		touched[e.Name] = true

		id, ok := c.Lookup(e.Name)
		if !ok {
			return &CatalogError{Joint: e.Name, Reason: "not a hubo-ach joint"}
		}
		if e.ID != nil && *e.ID != id {
			return &CatalogError{Joint: e.Name, Reason: fmt.Sprintf("table id %d, catalog id %d", *e.ID, id)}
		}
		j := &c.Joints[id]
		if e.Active != nil {
			j.Active = *e.Active
		}
		setInt(&j.Params.MotorNo, e.MotorNo)
		setInt(&j.Params.JMC, e.JMC)
		setInt(&j.Params.CAN, e.CAN)
		setFloat(&j.Params.Drive, e.Drive)
		setFloat(&j.Params.Driven, e.Driven)
		setFloat(&j.Params.Harmonic, e.Harmonic)
		setFloat(&j.Params.Encoder, e.Encoder)
		setFloat(&j.Params.Direction, e.Direction)

		if j.Params.Driven == 0 || j.Params.Encoder == 0 {
			return &CatalogError{Joint: e.Name, Reason: "driven and encoder must be non-zero"}
		}
	}
	return c.Validate()
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
