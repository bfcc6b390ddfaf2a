package domain

// CanTransition reports whether actor may move complaint to target.
// Only the current assignee or an administrator may drive the lifecycle.
func (a Actor) CanTransition(c *Complaint, target ComplaintStatus) bool {
	if c == nil {
		return false
	}
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleStaff:
		return c.IsAssignedTo(a.ID)
	case RoleSystem:
		return target == StatusEscalated
	default:
		return false
	}
}

// CanEscalate reports whether actor may escalate the complaint.
func (a Actor) CanEscalate(c *Complaint) bool {
	return a.CanTransition(c, StatusEscalated)
}

// CanAssign reports whether actor may hand the complaint to staffID.
// Staff may only take complaints themselves; "auto" is admin only.
func (a Actor) CanAssign(staffID string) bool {
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleStaff:
		return staffID != "" && staffID == a.ID
	default:
		return false
	}
}

// CanUnassign reports whether actor may release the complaint.
func (a Actor) CanUnassign(c *Complaint) bool {
	if c == nil {
		return false
	}
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleStaff:
		return c.IsAssignedTo(a.ID)
	default:
		return false
	}
}

// CanView reports whether actor may read the complaint or join its room.
func (a Actor) CanView(c *Complaint) bool {
	if c == nil {
		return false
	}
	switch a.Role {
	case RoleAdmin, RoleStaff, RoleSystem:
		return true
	case RoleUser:
		return c.SubmittedBy == a.ID
	default:
		return false
	}
}
