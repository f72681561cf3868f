package email

const (
	subjectLeadMagnetFmt     = "Your copy of %s"
	subjectQualifiedFollowUp = "Your next step"
	defaultLeadMagnetHeading = "Here is your download"
	defaultFollowUpHeading   = "Thanks for answering"
	defaultDownloadLinkLabel = "Download now"
)
