package achievement

import "fmt"

// Facts is the aggregate state badge predicates are evaluated against. Counts
// are read from the authoritative stores at evaluation time.
type Facts struct {
	CompletedTasks     int // completed tasks the user owns
	Posts              int
	FoodLogs           int
	MeditationSessions int
	Streak             int // calorie-goal streak
	MeditationStreak   int
	XP                 int
}

// Badge is an immutable catalog entry.
type Badge struct {
	Code        string           `json:"code"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Predicate   func(Facts) bool `json:"-"`
}

// Catalog is an ordered, read-only set of badges.
type Catalog struct {
	badges []Badge
	byCode map[string]int
}

// NewCatalog builds a catalog. Codes must be unique and every badge needs a predicate.
func NewCatalog(badges ...Badge) (*Catalog, error) {
	c := &Catalog{
		badges: make([]Badge, len(badges)),
		byCode: make(map[string]int, len(badges)),
	}
	for i, b := range badges {
		if b.Code == "" || b.Predicate == nil {
			return nil, fmt.Errorf("badge %d: code and predicate are required", i)
		}
		if _, dup := c.byCode[b.Code]; dup {
			return nil, fmt.Errorf("duplicate badge code %q", b.Code)
		}
		c.badges[i] = b
		c.byCode[b.Code] = i
	}
	return c, nil
}

// All returns the badges in catalog order.
func (c *Catalog) All() []Badge {
	out := make([]Badge, len(c.badges))
	copy(out, c.badges)
	return out
}

// Lookup returns the badge for code.
func (c *Catalog) Lookup(code string) (Badge, bool) {
	i, ok := c.byCode[code]
	if !ok {
		return Badge{}, false
	}
	return c.badges[i], true
}

func atLeast(n int, field func(Facts) int) func(Facts) bool {
	return func(f Facts) bool { return field(f) >= n }
}

var defaultCatalog = mustCatalog(
	Badge{"first_goal", "First Step", "Complete your first goal", atLeast(1, func(f Facts) int { return f.CompletedTasks })},
	Badge{"task_master", "Task Master", "Complete 10 goals", atLeast(10, func(f Facts) int { return f.CompletedTasks })},
	Badge{"goal_crusher", "Goal Crusher", "Complete 50 goals", atLeast(50, func(f Facts) int { return f.CompletedTasks })},
	Badge{"first_post", "Hello, Community", "Share your first post", atLeast(1, func(f Facts) int { return f.Posts })},
	Badge{"community_voice", "Community Voice", "Share 10 posts", atLeast(10, func(f Facts) int { return f.Posts })},
	Badge{"nutrition_tracker", "Nutrition Tracker", "Log 10 meals", atLeast(10, func(f Facts) int { return f.FoodLogs })},
	Badge{"zen_beginner", "Zen Beginner", "Finish your first meditation session", atLeast(1, func(f Facts) int { return f.MeditationSessions })},
	Badge{"zen_master", "Zen Master", "Finish 25 meditation sessions", atLeast(25, func(f Facts) int { return f.MeditationSessions })},
	Badge{"streak_3", "On a Roll", "Hit your calorie goal 3 days in a row", atLeast(3, func(f Facts) int { return f.Streak })},
	Badge{"streak_7", "Week Warrior", "Hit your calorie goal 7 days in a row", atLeast(7, func(f Facts) int { return f.Streak })},
	Badge{"streak_30", "Unstoppable", "Hit your calorie goal 30 days in a row", atLeast(30, func(f Facts) int { return f.Streak })},
	Badge{"mindful_week", "Mindful Week", "Meditate 7 days in a row", atLeast(7, func(f Facts) int { return f.MeditationStreak })},
	Badge{"xp_1000", "Rising Star", "Earn 1000 XP", atLeast(1000, func(f Facts) int { return f.XP })},
)

// DefaultCatalog returns the built-in badge catalog.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

func mustCatalog(badges ...Badge) *Catalog {
	c, err := NewCatalog(badges...)
	if err != nil {
		panic(err)
	}
	return c
}
