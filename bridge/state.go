package bridge

// RenderState fills msg from the model's DOF-ordered pose, velocity and
// targets. Paired joints get {ref, pos, vel} with current, heat and
// temperature zero; unpaired physical slots are zeroed so no value from an
// earlier frame survives. Force-torque, IMU and motor status blocks are not
// emulated and stay at their zero value.
func RenderState(msg *StateMessage, corr *Correspondence, pose, vel, targets []float64, simTime float64) {
	for p := 0; p < JointCount; p++ {
		if _, ok := corr.Virtual(p); !ok {
			msg.Joint[p] = JointState{}
		}
	}
	for v, p := range corr.virtualToPhys {
		if p == Unmapped || p >= JointCount {
			continue
		}
		msg.Joint[p] = JointState{
			Ref: at(targets, v),
			Pos: at(pose, v),
			Vel: at(vel, v),
		}
	}
	msg.Time = simTime
	msg.RefWait = 0
}

func at(xs []float64, i int) float64 {
	if i < len(xs) {
		return xs[i]
	}
	return 0
}
