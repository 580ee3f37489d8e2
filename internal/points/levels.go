// Package points keeps the gamification ledger: point grants, levels and leaderboards.
package points

// Action is a point-earning activity.
type Action string

const (
	ActionPostCreated     Action = "POST_CREATED"
	ActionCommentCreated  Action = "COMMENT_CREATED"
	ActionLikeReceived    Action = "LIKE_RECEIVED"
	ActionLessonCompleted Action = "LESSON_COMPLETED"
	ActionCourseCompleted Action = "COURSE_COMPLETED"
	ActionEventCreated    Action = "EVENT_CREATED"
)

var amounts = map[Action]int{
	ActionPostCreated:     5,
	ActionCommentCreated:  2,
	ActionLikeReceived:    1,
	ActionLessonCompleted: 10,
	ActionCourseCompleted: 50,
	ActionEventCreated:    5,
}

// thresholds[n-1] is the cumulative total needed for level n.
var thresholds = [...]int{0, 50, 150, 300, 500, 800, 1200, 1700, 2300, 3000}

// MaxLevel is the highest reachable level.
const MaxLevel = len(thresholds)

// AmountFor returns the points granted for action.
func AmountFor(action Action) (int, bool) {
	n, ok := amounts[action]
	return n, ok
}

// Thresholds returns a copy of the level thresholds.
func Thresholds() []int {
	out := make([]int, len(thresholds))
	copy(out, thresholds[:])
	return out
}

// CalculateLevel returns the highest level whose threshold points meets; never below 1.
func CalculateLevel(points int) int {
	level := 1
	for i, t := range thresholds {
		if points >= t {
			level = i + 1
		}
	}
	return level
}

// PointsToNextLevel returns how many more points reach the next level, or 0 at MaxLevel.
func PointsToNextLevel(points int) int {
	level := CalculateLevel(points)
	if level >= MaxLevel {
		return 0
	}
	return thresholds[level] - points
}
