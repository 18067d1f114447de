package bridge

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Frame sizes in bytes. All fields are little-endian IEEE-754 doubles.
const (
	RefFrameSize   = JointCount * 8
	jointStateSize = 6 * 8
	ftStateSize    = 3 * 8
	imuStateSize   = 6 * 8
	StateFrameSize = JointCount*jointStateSize + FTCount*ftStateSize + IMUCount*imuStateSize + 2*8
)

// ReferenceMessage is the inbound command frame: one target position per
// physical joint ID.
type ReferenceMessage struct {
	Ref [JointCount]float64
}

// Decode fills m from a reference frame. The frame must be exactly
// RefFrameSize bytes and every value finite; on error m is untouched.
func (m *ReferenceMessage) Decode(buf []byte) error {
	if len(buf) != RefFrameSize {
		return fmt.Errorf("reference frame is %d bytes, want %d", len(buf), RefFrameSize)
	}
	for i := 0; i < JointCount; i++ {
		v := math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite reference %v for joint %d", v, i)
		}
	}
	for i := 0; i < JointCount; i++ {
		m.Ref[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return nil
}

// Encode writes m into buf, which must hold at least RefFrameSize bytes.
func (m *ReferenceMessage) Encode(buf []byte) error {
	if len(buf) < RefFrameSize {
		return fmt.Errorf("buffer is %d bytes, reference frame needs %d", len(buf), RefFrameSize)
	}
	for i, v := range m.Ref {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return nil
}

// JointState is the per-joint block of the state frame.
type JointState struct {
	Ref  float64 `json:"ref"`
	Pos  float64 `json:"pos"`
	Vel  float64 `json:"vel"`
	Cur  float64 `json:"cur"`
	Heat float64 `json:"heat"`
	Tmp  float64 `json:"tmp"`
}

// FTState is a force-torque sensor block. Not populated by the emulator.
type FTState struct {
	Mx float64 `json:"m_x"`
	My float64 `json:"m_y"`
	Fz float64 `json:"f_z"`
}

// IMUState is an inertial sensor block. Not populated by the emulator.
type IMUState struct {
	AX float64 `json:"a_x"`
	AY float64 `json:"a_y"`
	AZ float64 `json:"a_z"`
	WX float64 `json:"w_x"`
	WY float64 `json:"w_y"`
	WZ float64 `json:"w_z"`
}

// StateMessage is the outbound telemetry frame.
type StateMessage struct {
	Joint   [JointCount]JointState `json:"joint"`
	FT      [FTCount]FTState       `json:"ft"`
	IMU     [IMUCount]IMUState     `json:"imu"`
	Time    float64                `json:"time"`
	RefWait float64                `json:"ref_wait"`
}

// Encode writes m into buf, which must hold at least StateFrameSize bytes.
func (m *StateMessage) Encode(buf []byte) error {
	if len(buf) < StateFrameSize {
		return fmt.Errorf("buffer is %d bytes, state frame needs %d", len(buf), StateFrameSize)
	}
	w := frameWriter{buf: buf}
	for i := range m.Joint {
		j := &m.Joint[i]
		w.put(j.Ref, j.Pos, j.Vel, j.Cur, j.Heat, j.Tmp)
	}
	for i := range m.FT {
		f := &m.FT[i]
		w.put(f.Mx, f.My, f.Fz)
	}
	for i := range m.IMU {
		u := &m.IMU[i]
		w.put(u.AX, u.AY, u.AZ, u.WX, u.WY, u.WZ)
	}
	w.put(m.Time, m.RefWait)
	return nil
}

// Decode fills m from a state frame of exactly StateFrameSize bytes.
func (m *StateMessage) Decode(buf []byte) error {
	if len(buf) != StateFrameSize {
		return fmt.Errorf("state frame is %d bytes, want %d", len(buf), StateFrameSize)
	}
	r := frameReader{buf: buf}
	for i := range m.Joint {
		j := &m.Joint[i]
		r.get(&j.Ref, &j.Pos, &j.Vel, &j.Cur, &j.Heat, &j.Tmp)
	}
	for i := range m.FT {
		f := &m.FT[i]
		r.get(&f.Mx, &f.My, &f.Fz)
	}
	for i := range m.IMU {
		u := &m.IMU[i]
		r.get(&u.AX, &u.AY, &u.AZ, &u.WX, &u.WY, &u.WZ)
	}
	r.get(&m.Time, &m.RefWait)
	return nil
}

type frameWriter struct {
	buf []byte
	off int
}

func (w *frameWriter) put(vals ...float64) {
	for _, v := range vals {
		binary.LittleEndian.PutUint64(w.buf[w.off:], math.Float64bits(v))
		w.off += 8
	}
}

type frameReader struct {
	buf []byte
	off int
}

func (r *frameReader) get(dst ...*float64) {
	for _, d := range dst {
		*d = math.Float64frombits(binary.LittleEndian.Uint64(r.buf[r.off:]))
		r.off += 8
	}
}
