// Package inbox decides which broadcast messages a viewer sees and for how long.
// Everything here is a pure function of its arguments.
package inbox

import (
	"strings"

	"github.com/BradenHooton/portal/internal/models"
)

// roleChannels maps both the singular and plural spelling of each role to
// its broadcast channel.
var roleChannels = map[string]string{
	"student":   models.TargetStudents,
	"students":  models.TargetStudents,
	"alumni":    models.TargetAlumni,
	"delegate":  models.TargetDelegates,
	"delegates": models.TargetDelegates,
	"admin":     models.TargetAdmins,
	"admins":    models.TargetAdmins,
}

// channel returns the role channel named by s, if any.
func channel(s string) (string, bool) {
	c, ok := roleChannels[strings.ToLower(strings.TrimSpace(s))]
	return c, ok
}

// IsRelevant reports whether m belongs in the inbox of the given viewer.
func IsRelevant(m *models.Message, viewerID string, viewerRole models.Role, viewerGroupID string) bool {
	if m == nil {
		return false
	}

	if viewerID != "" {
		for _, id := range m.IndividualUserIDs {
			if id == viewerID {
				return true
			}
		}
	}

	if m.Target == models.TargetAll {
		return true
	}

	if target, ok := channel(m.Target); ok {
		if role, ok := channel(string(viewerRole)); ok && role == target {
			return true
		}
	}

	return m.Target == models.TargetFiliere &&
		viewerGroupID != "" &&
		m.TargetFiliereID == viewerGroupID
}
