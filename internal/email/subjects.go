package email

const subjectFollowUpFmt = "Qualified lead: %s (score %d)"
