package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextPatientID is the gin context key the auth middleware fills with the
// authenticated patient's ID.
const ContextPatientID = "patientID"

func PatientID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextPatientID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
