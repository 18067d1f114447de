package rigid

// huboRootDofs are the floating-base DOFs that lead the Hubo+ DOF list.
var huboRootDofs = []string{
	"rootJoint_pos_x", "rootJoint_pos_y", "rootJoint_pos_z",
	"rootJoint_rot_x", "rootJoint_rot_y", "rootJoint_rot_z",
}

// huboJointDofs follow the Hubo+ model naming: the torso yaw is HPY, knees
// and elbows are named as pitch joints, and the hands carry no finger DOFs.
var huboJointDofs = []string{
	"HPY",
	"NKY", "NK1", "NK2",
	"LSP", "LSR", "LSY", "LEP", "LWY", "LWP",
	"RSP", "RSR", "RSY", "REP", "RWY", "RWP",
	"LHY", "LHR", "LHP", "LKP", "LAP", "LAR",
	"RHY", "RHR", "RHP", "RKP", "RAP", "RAR",
}

// HuboPlus returns the built-in Hubo+ skeleton: one body per joint named
// "Body_<joint>", plus the hip and torso bodies.
func HuboPlus() SkeletonSpec {
	spec := SkeletonSpec{
		Name:   "huboplus",
		Bodies: []string{"Body_Hip", "Body_Torso"},
	}
	for _, name := range huboRootDofs {
		spec.Dofs = append(spec.Dofs, DofSpec{Name: name, Inertia: 40})
	}
	for _, name := range huboJointDofs {
		spec.Dofs = append(spec.Dofs, DofSpec{Name: name, Inertia: 1, Damping: 0.5})
		spec.Bodies = append(spec.Bodies, "Body_"+name)
	}
	return spec
}

// HuboPlusWorld returns a world holding only the built-in Hubo+.
func HuboPlusWorld(timestep float64) WorldSpec {
	return WorldSpec{TimeStep: timestep, Skeletons: []SkeletonSpec{HuboPlus()}}
}
