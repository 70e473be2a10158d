package email

const (
	subjectAppointmentReminderFmt = "Rappel : %s demain"
	subjectTaskReminderFmt        = "Tâche à échéance : %s"
	subjectProspectAssignedFmt    = "Nouveau prospect attribué : %s"
)
