package grade

import "slices"

// RejectResult reports which entries a rejection rolled back.
type RejectResult struct {
	WrittenRemoved *WrittenEntry
	ProjectRemoved *ProjectEntry
	Marked         bool
}

// Changed reports whether the record needs to be written back.
func (r RejectResult) Changed() bool {
	return r.WrittenRemoved != nil || r.ProjectRemoved != nil || r.Marked
}

// Reject rolls back a student's current appeal: the last written entry and
// the last project entry are removed when their keys match the current
// markers, and the markers are recorded so the verdict short-circuits.
// Calling Reject twice for the same session is a no-op the second time.
func Reject(r *Record, s Session) RejectResult {
	var res RejectResult

	if n := len(r.WrittenGrades); n > 0 && s.Written != "" && r.WrittenGrades[n-1].SessionKey == s.Written {
		last := r.WrittenGrades[n-1]
		res.WrittenRemoved = &last
		r.WrittenGrades = slices.Clone(r.WrittenGrades[:n-1])
	}
	if n := len(r.ProjectGrades); n > 0 && s.Project != "" && r.ProjectGrades[n-1].SessionKey == s.Project {
		last := r.ProjectGrades[n-1]
		res.ProjectRemoved = &last
		r.ProjectGrades = slices.Clone(r.ProjectGrades[:n-1])
	}

	if s.Written != "" && !slices.Contains(r.Rejected.Written, s.Written) {
		r.Rejected.Written = append(r.Rejected.Written, s.Written)
		res.Marked = true
	}
	if s.Project != "" && !slices.Contains(r.Rejected.Project, s.Project) {
		r.Rejected.Project = append(r.Rejected.Project, s.Project)
		res.Marked = true
	}
	return res
}
