package types

// Document collections.
const (
	CollStudents              = "students"
	CollJobs                  = "jobs"
	CollCompanies             = "companies"
	CollApplications          = "applications"
	CollSkills                = "skills"
	CollAchievements          = "achievements"
	CollProjects              = "projects"
	CollEducationalBackground = "educational_background"
	CollEmailNotifications    = "emailNotifications"
	CollUnsubscribedUsers     = "unsubscribedUsers"
	CollResumeBuilderData     = "resume_builder_data"
	CollResumes               = "resumes"
	CollNotifications         = "notifications"
	CollUsers                 = "users"
	CollPasswordResets        = "password_resets"
	CollUserEmails            = "user_emails"
)
