package bridge

// ApplyReference copies the commanded position of every paired physical
// joint into target at its DOF index. Unpaired joints are ignored and
// unpaired DOFs keep their previous target.
func ApplyReference(msg *ReferenceMessage, corr *Correspondence, target []float64) {
	n := min(len(corr.physToVirtual), JointCount)
	for p := 0; p < n; p++ {
		v := corr.physToVirtual[p]
		if v == Unmapped || v >= len(target) {
			continue
		}
		target[v] = msg.Ref[p]
	}
}
