package domain

// Course is the full structure of one Hotmart course as returned by the
// navigation API. It is built once per run and not mutated afterwards;
// only the lessons' Status and Content fields change during a download.
type Course struct {
	ID        string
	Name      string
	Subdomain string
	Modules   []Module
}

// Module groups lessons in the order the API returned them.
type Module struct {
	ID      string
	Name    string
	Order   int
	Lessons []Lesson
}

// Lesson is one page inside a module. ID is the opaque page hash used by
// the lesson endpoint.
type Lesson struct {
	ID      string
	Name    string
	Order   int
	Status  DownloadStatus
	Content *LessonContent
}

// CourseListItem is one entry from the purchase list, before the full
// structure has been fetched.
type CourseListItem struct {
	ProductID string
	Name      string
	Subdomain string
	Role      string
	Status    string
}

// TotalLessons counts lessons across all modules.
func (c *Course) TotalLessons() int {
	n := 0
	for _, m := range c.Modules {
		n += len(m.Lessons)
	}
	return n
}
