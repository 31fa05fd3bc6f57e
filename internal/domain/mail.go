package domain

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

const MailTypeAssignmentsConfirmed = "assignments_confirmed"

type AssignmentsConfirmedMailData struct {
	WorkDate     string `json:"workDate"`
	Revision     int64  `json:"revision"`
	Author       string `json:"author"`
	TaskCount    int    `json:"taskCount"`
	CleanerCount int    `json:"cleanerCount"`
}
