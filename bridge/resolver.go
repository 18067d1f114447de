package bridge

import "fmt"

// Unmapped marks an index with no counterpart on the other side.
const Unmapped = -1

// AliasTable maps irregular physical joint names to the DOF name used by the
// model.
type AliasTable map[string]string

// HuboAliases are the hubo-ach joints whose names differ from the Hubo+
// model: the physical protocol says knee/elbow, the model says knee/elbow
// pitch. Read-only.
var HuboAliases = AliasTable{
	"RKN": "RKP",
	"LKN": "LKP",
	"REB": "REP",
	"LEB": "LEP",
}

// Canonical returns the model-side name for a physical joint name.
func (a AliasTable) Canonical(name string) string {
	if alias, ok := a[name]; ok {
		return alias
	}
	return name
}

// DofDescriptor is the model host's view of one degree of freedom.
type DofDescriptor struct {
	Index int
	Name  string
}

// Correspondence pairs physical joint IDs with model DOF indices. Both
// directions are plain index arrays holding Unmapped where there is no
// partner. Immutable after BuildCorrespondence.
type Correspondence struct {
	physToVirtual []int
	virtualToPhys []int
	pairs         int
}

// JointPair is one entry of a correspondence.
type JointPair struct {
	Physical int
	Virtual  int
	Joint    string
	Dof      string
}

// BuildCorrespondence pairs every active catalog joint with the first DOF
// whose name equals the joint's canonical name. Inactive joints are never
// paired even when a DOF of that name exists. A DOF is claimed at most once.
func BuildCorrespondence(joints []JointDescriptor, dofs []DofDescriptor, aliases AliasTable) (*Correspondence, error) {
	if len(joints) > JointCount {
		return nil, &CatalogError{Joint: "<catalog>", Reason: fmt.Sprintf("%d joints exceed the %d protocol slots", len(joints), JointCount)}
	}
	c := &Correspondence{
		physToVirtual: make([]int, len(joints)),
		virtualToPhys: make([]int, len(dofs)),
	}
	for i := range c.physToVirtual {
		c.physToVirtual[i] = Unmapped
	}
	for i := range c.virtualToPhys {
		c.virtualToPhys[i] = Unmapped
	}

	for p := range joints {
		j := &joints[p]
		if j.ID != p {
			return nil, &CatalogError{Joint: jointLabel(j), Reason: fmt.Sprintf("id %d stored in slot %d", j.ID, p)}
		}
		if !j.Active || j.Name == "" {
			continue
		}
		v := findNamedDof(dofs, aliases.Canonical(j.Name))
		if v == Unmapped || c.virtualToPhys[v] != Unmapped {
			continue
		}
		c.physToVirtual[p] = v
		c.virtualToPhys[v] = p
		c.pairs++
	}

	if c.pairs == 0 {
		return nil, ErrNoCorrespondence
	}
	return c, nil
}

// findNamedDof returns the position of the first DOF named name, or Unmapped.
func findNamedDof(dofs []DofDescriptor, name string) int {
	for i := range dofs {
		if dofs[i].Name == name {
			return i
		}
	}
	return Unmapped
}

// Virtual returns the DOF index paired with physical joint p.
func (c *Correspondence) Virtual(p int) (int, bool) {
	if p < 0 || p >= len(c.physToVirtual) {
		return Unmapped, false
	}
	v := c.physToVirtual[p]
	return v, v != Unmapped
}

// Physical returns the physical joint ID paired with DOF v.
func (c *Correspondence) Physical(v int) (int, bool) {
	if v < 0 || v >= len(c.virtualToPhys) {
		return Unmapped, false
	}
	p := c.virtualToPhys[v]
	return p, p != Unmapped
}

// Len returns the number of paired joints.
func (c *Correspondence) Len() int { return c.pairs }

// NumJoints returns the size of the physical side.
func (c *Correspondence) NumJoints() int { return len(c.physToVirtual) }

// NumDofs returns the size of the model side.
func (c *Correspondence) NumDofs() int { return len(c.virtualToPhys) }

// Pairs lists the paired joints in physical ID order, with names taken from
// joints and dofs.
func (c *Correspondence) Pairs(joints []JointDescriptor, dofs []DofDescriptor) []JointPair {
	out := make([]JointPair, 0, c.pairs)
	for p, v := range c.physToVirtual {
		if v == Unmapped {
			continue
		}
		pair := JointPair{Physical: p, Virtual: v}
		if p < len(joints) {
			pair.Joint = joints[p].Name
		}
		if v < len(dofs) {
			pair.Dof = dofs[v].Name
		}
		out = append(out, pair)
	}
	return out
}
