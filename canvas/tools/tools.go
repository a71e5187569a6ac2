// Package tools defines the Canvas tool catalog served over MCP.
package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ggoodman/canvas-mcp/canvas"
	"github.com/ggoodman/canvas-mcp/ident"
	"github.com/ggoodman/canvas-mcp/mcpservice"
)

// Cache lifetimes per resource. Discussions move fastest.
const (
	userTTL       = 5 * time.Minute
	courseListTTL = 5 * time.Minute
	courseTTL     = 10 * time.Minute
	assignmentTTL = 5 * time.Minute
	discussionTTL = 2 * time.Minute
)

// Catalog returns every tool in registration order.
func Catalog(c *canvas.Client) []mcpservice.StaticTool {
	return []mcpservice.StaticTool{
		getCurrentUser(c),
		listCourses(c),
		getCourse(c),
		listAssignments(c),
		getAssignment(c),
		listDiscussionTopics(c),
		getDiscussionTopic(c),
		postDiscussionEntry(c),
	}
}

// NewContainer registers the catalog into a fresh registry.
func NewContainer(c *canvas.Client) (*mcpservice.ToolsContainer, error) {
	return mcpservice.NewToolsContainer(Catalog(c)...)
}

type noArgs struct{}

type listCoursesArgs struct {
	EnrollmentState string `json:"enrollment_state,omitempty" jsonschema:"description=Only include courses with this enrollment state,enum=active,enum=invited_or_pending,enum=completed"`
}

type courseArgs struct {
	CourseIdentifier ident.ID `json:"course_identifier" jsonschema:"description=Canvas course id or an SIS reference such as sis_course_id:ABC123"`
}

type listAssignmentsArgs struct {
	CourseIdentifier ident.ID `json:"course_identifier" jsonschema:"description=Canvas course id or an SIS reference such as sis_course_id:ABC123"`
	Bucket           string   `json:"bucket,omitempty" jsonschema:"description=Filter assignments by due state,enum=past,enum=overdue,enum=undated,enum=ungraded,enum=unsubmitted,enum=upcoming,enum=future"`
}

type assignmentArgs struct {
	CourseIdentifier ident.ID `json:"course_identifier" jsonschema:"description=Canvas course id or an SIS reference such as sis_course_id:ABC123"`
	AssignmentID     ident.ID `json:"assignment_id" jsonschema:"description=Canvas assignment id"`
}

type listDiscussionsArgs struct {
	CourseIdentifier  ident.ID `json:"course_identifier" jsonschema:"description=Canvas course id or an SIS reference such as sis_course_id:ABC123"`
	OnlyAnnouncements *bool    `json:"only_announcements,omitempty" jsonschema:"description=Return announcements instead of discussions"`
}

type topicArgs struct {
	CourseIdentifier ident.ID `json:"course_identifier" jsonschema:"description=Canvas course id or an SIS reference such as sis_course_id:ABC123"`
	TopicID          ident.ID `json:"topic_id" jsonschema:"description=Canvas discussion topic id"`
}

type postEntryArgs struct {
	CourseIdentifier ident.ID `json:"course_identifier" jsonschema:"description=Canvas course id or an SIS reference such as sis_course_id:ABC123"`
	TopicID          ident.ID `json:"topic_id" jsonschema:"description=Canvas discussion topic id"`
	Message          string   `json:"message" jsonschema:"description=Reply body; HTML is allowed"`
}

func coursePath(id ident.ID, rest ...string) string {
	parts := append([]string{"courses", canvas.PathSegment(id.String())}, rest...)
	return strings.Join(parts, "/")
}

func getCurrentUser(c *canvas.Client) mcpservice.StaticTool {
	return mcpservice.NewTool[noArgs]("get_current_user", func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[noArgs]) error {
		u, err := c.CurrentUser(ctx)
		if err != nil {
			return err
		}
		return w.AppendJSON(u)
	},
		mcpservice.WithToolDescription("Get the profile of the user that owns the configured API token."),
		mcpservice.WithToolCacheTTL(userTTL),
	)
}

func listCourses(c *canvas.Client) mcpservice.StaticTool {
	return mcpservice.NewTool[listCoursesArgs]("list_courses", func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[listCoursesArgs]) error {
		q := url.Values{"include[]": {"term", "total_students"}}
		if s := r.Args().EnrollmentState; s != "" {
			q.Set("enrollment_state", s)
		}
		courses, err := canvas.List[canvas.Course](ctx, c, "courses", q)
		if err != nil {
			return err
		}
		return w.AppendJSON(map[string]any{"count": len(courses), "courses": courses})
	},
		mcpservice.WithToolDescription("List courses the current user is enrolled in."),
		mcpservice.WithToolCacheTTL(courseListTTL),
	)
}

func getCourse(c *canvas.Client) mcpservice.StaticTool {
	return mcpservice.NewTool[courseArgs]("get_course", func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[courseArgs]) error {
		var course canvas.Course
		q := url.Values{"include[]": {"term", "syllabus_body", "total_students"}}
		if err := c.Get(ctx, coursePath(r.Args().CourseIdentifier), q, &course); err != nil {
			return err
		}
		return w.AppendJSON(course)
	},
		mcpservice.WithToolDescription("Get a single course, including its term and syllabus."),
		mcpservice.WithToolCacheTTL(courseTTL),
	)
}

func listAssignments(c *canvas.Client) mcpservice.StaticTool {
	return mcpservice.NewTool[listAssignmentsArgs]("list_assignments", func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[listAssignmentsArgs]) error {
		args := r.Args()
		q := url.Values{"order_by": {"due_at"}}
		if args.Bucket != "" {
			q.Set("bucket", args.Bucket)
		}
		items, err := canvas.List[canvas.Assignment](ctx, c, coursePath(args.CourseIdentifier, "assignments"), q)
		if err != nil {
			return err
		}
		return w.AppendJSON(map[string]any{"count": len(items), "assignments": items})
	},
		mcpservice.WithToolDescription("List assignments in a course ordered by due date, optionally filtered by bucket."),
		mcpservice.WithToolCacheTTL(assignmentTTL),
	)
}

func getAssignment(c *canvas.Client) mcpservice.StaticTool {
	return mcpservice.NewTool[assignmentArgs]("get_assignment", func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[assignmentArgs]) error {
		args := r.Args()
		var a canvas.Assignment
		path := coursePath(args.CourseIdentifier, "assignments", canvas.PathSegment(args.AssignmentID.String()))
		if err := c.Get(ctx, path, nil, &a); err != nil {
			return err
		}
		return w.AppendJSON(a)
	},
		mcpservice.WithToolDescription("Get a single assignment."),
		mcpservice.WithToolCacheTTL(assignmentTTL),
	)
}

func listDiscussionTopics(c *canvas.Client) mcpservice.StaticTool {
	return mcpservice.NewTool[listDiscussionsArgs]("list_discussion_topics", func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[listDiscussionsArgs]) error {
		args := r.Args()
		q := url.Values{}
		if args.OnlyAnnouncements != nil && *args.OnlyAnnouncements {
			q.Set("only_announcements", "true")
		}
		topics, err := canvas.List[canvas.DiscussionTopic](ctx, c, coursePath(args.CourseIdentifier, "discussion_topics"), q)
		if err != nil {
			return err
		}
		return w.AppendJSON(map[string]any{"count": len(topics), "topics": topics})
	},
		mcpservice.WithToolDescription("List discussion topics or announcements in a course."),
		mcpservice.WithToolCacheTTL(discussionTTL),
	)
}

func getDiscussionTopic(c *canvas.Client) mcpservice.StaticTool {
	return mcpservice.NewTool[topicArgs]("get_discussion_topic", func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[topicArgs]) error {
		args := r.Args()
		var topic canvas.DiscussionTopic
		path := coursePath(args.CourseIdentifier, "discussion_topics", canvas.PathSegment(args.TopicID.String()))
		if err := c.Get(ctx, path, nil, &topic); err != nil {
			return err
		}
		return w.AppendJSON(topic)
	},
		mcpservice.WithToolDescription("Get a single discussion topic."),
		mcpservice.WithToolCacheTTL(discussionTTL),
	)
}

func postDiscussionEntry(c *canvas.Client) mcpservice.StaticTool {
	return mcpservice.NewTool[postEntryArgs]("post_discussion_entry", func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[postEntryArgs]) error {
		args := r.Args()
		if strings.TrimSpace(args.Message) == "" {
			return &mcpservice.InvalidParamsError{Field: "message", Reason: "must not be empty", Expected: "non-empty string", Actual: "empty string"}
		}
		var entry canvas.DiscussionEntry
		path := coursePath(args.CourseIdentifier, "discussion_topics", canvas.PathSegment(args.TopicID.String()), "entries")
		if err := c.Post(ctx, path, map[string]string{"message": args.Message}, &entry); err != nil {
			return fmt.Errorf("post discussion entry: %w", err)
		}
		return w.AppendJSON(entry)
	},
		mcpservice.WithToolDescription("Post a reply to a discussion topic."),
	)
}
