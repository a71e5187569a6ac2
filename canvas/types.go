package canvas

import "time"

// User is a Canvas user profile.
type User struct {
	ID           uint64 `json:"id"`
	Name         string `json:"name"`
	SortableName string `json:"sortable_name,omitempty"`
	ShortName    string `json:"short_name,omitempty"`
	LoginID      string `json:"login_id,omitempty"`
	PrimaryEmail string `json:"primary_email,omitempty"`
	TimeZone     string `json:"time_zone,omitempty"`
}

// Term is an enrollment term.
type Term struct {
	ID      uint64     `json:"id"`
	Name    string     `json:"name"`
	StartAt *time.Time `json:"start_at,omitempty"`
	EndAt   *time.Time `json:"end_at,omitempty"`
}

// Course is a Canvas course.
type Course struct {
	ID                uint64     `json:"id"`
	Name              string     `json:"name"`
	CourseCode        string     `json:"course_code,omitempty"`
	SISCourseID       string     `json:"sis_course_id,omitempty"`
	WorkflowState     string     `json:"workflow_state,omitempty"`
	StartAt           *time.Time `json:"start_at,omitempty"`
	EndAt             *time.Time `json:"end_at,omitempty"`
	TimeZone          string     `json:"time_zone,omitempty"`
	DefaultView       string     `json:"default_view,omitempty"`
	SyllabusBody      string     `json:"syllabus_body,omitempty"`
	Term              *Term      `json:"term,omitempty"`
	TotalStudents     *int       `json:"total_students,omitempty"`
	EnrollmentTermID  uint64     `json:"enrollment_term_id,omitempty"`
	PublicDescription string     `json:"public_description,omitempty"`
}

// Assignment is a Canvas assignment.
type Assignment struct {
	ID              uint64     `json:"id"`
	CourseID        uint64     `json:"course_id,omitempty"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	DueAt           *time.Time `json:"due_at,omitempty"`
	UnlockAt        *time.Time `json:"unlock_at,omitempty"`
	LockAt          *time.Time `json:"lock_at,omitempty"`
	PointsPossible  *float64   `json:"points_possible,omitempty"`
	GradingType     string     `json:"grading_type,omitempty"`
	SubmissionTypes []string   `json:"submission_types,omitempty"`
	Published       bool       `json:"published"`
	HTMLURL         string     `json:"html_url,omitempty"`
}

// DiscussionTopic is a discussion or announcement.
type DiscussionTopic struct {
	ID             uint64     `json:"id"`
	Title          string     `json:"title"`
	Message        string     `json:"message,omitempty"`
	PostedAt       *time.Time `json:"posted_at,omitempty"`
	LastReplyAt    *time.Time `json:"last_reply_at,omitempty"`
	UserName       string     `json:"user_name,omitempty"`
	DiscussionType string     `json:"discussion_type,omitempty"`
	Published      bool       `json:"published"`
	Locked         bool       `json:"locked"`
	Pinned         bool       `json:"pinned"`
	ReplyCount     int        `json:"discussion_subentry_count"`
	HTMLURL        string     `json:"html_url,omitempty"`
}

// DiscussionEntry is a reply posted to a discussion topic.
type DiscussionEntry struct {
	ID        uint64     `json:"id"`
	UserID    uint64     `json:"user_id,omitempty"`
	UserName  string     `json:"user_name,omitempty"`
	Message   string     `json:"message"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}
