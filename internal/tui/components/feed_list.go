package components

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/mmcdole/kudos/internal/domain"
	"github.com/mmcdole/kudos/internal/tui/styles"
)

// Spinner frames for loading animation
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// SpinnerFrame returns the spinner glyph for frame
func SpinnerFrame(frame int) string {
	return spinnerFrames[frame%len(spinnerFrames)]
}

// Layout constants
const (
	BorderWidth  = 2
	BorderHeight = 2

	// Scroll indicators ("↑ more" and "↓ more") each take 1 line
	ScrollIndicatorLines = 2
)

// FeedList is a scrollable, filterable list of posts with engagement state
type FeedList struct {
	posts []domain.Post
	views map[string]domain.EngagementUpdate // by post ID

	// Selection
	cursor     int
	offset     int
	maxVisible int

	// Dimensions
	width  int
	height int

	title        string
	loading      bool
	spinnerFrame int
	now          func() time.Time

	// Filter state
	filterActive bool
	filterInput  textinput.Model
	filterQuery  string
	matches      fuzzy.Matches // nil when no query
}

// NewFeedList creates an empty feed list
func NewFeedList(title string) *FeedList {
	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.Prompt = "/ "
	ti.PromptStyle = styles.FilterPromptStyle
	ti.TextStyle = styles.FilterStyle

	return &FeedList{
		title:       title,
		views:       make(map[string]domain.EngagementUpdate),
		filterInput: ti,
		now:         time.Now,
	}
}

// SetPosts replaces the listed posts, keeping the cursor in range
func (l *FeedList) SetPosts(posts []domain.Post) {
	l.posts = slices.Clone(posts)
	if l.filterQuery != "" {
		l.applyFilter(false)
	}
	l.clampCursor()
}

// SetView records the engagement view of a post
func (l *FeedList) SetView(update domain.EngagementUpdate) {
	l.views[update.Key.ID] = update
}

// ViewOf returns the recorded engagement view of a post
func (l *FeedList) ViewOf(id string) (domain.EngagementUpdate, bool) {
	v, ok := l.views[id]
	return v, ok
}

// SetLoading shows the loading row under the list
func (l *FeedList) SetLoading(loading bool) {
	l.loading = loading
}

// SetSpinnerFrame updates the spinner animation frame
func (l *FeedList) SetSpinnerFrame(frame int) {
	l.spinnerFrame = frame
}

// SetSize sets the outer dimensions
func (l *FeedList) SetSize(width, height int) {
	l.width = width
	l.height = height
	l.recalcMaxVisible()
	l.ensureVisible()
}

// Len returns the number of visible rows
func (l *FeedList) Len() int {
	if l.matches != nil {
		return len(l.matches)
	}
	return len(l.posts)
}

// Cursor returns the selected row
func (l *FeedList) Cursor() int {
	return l.cursor
}

// Selected returns the post under the cursor
func (l *FeedList) Selected() (domain.Post, bool) {
	if l.cursor >= l.Len() {
		return domain.Post{}, false
	}
	return l.posts[l.mapIndex(l.cursor)], true
}

// NearEnd reports whether the cursor is within threshold rows of the end
// of the unfiltered list
func (l *FeedList) NearEnd(threshold int) bool {
	if l.matches != nil {
		return false
	}
	return l.cursor >= len(l.posts)-1-threshold
}

// FilterFocused reports whether keystrokes go to the filter input
func (l *FeedList) FilterFocused() bool {
	return l.filterActive && l.filterInput.Focused()
}

// FilterActive reports whether a filter bar is shown
func (l *FeedList) FilterActive() bool {
	return l.filterActive
}

// Update handles navigation and filter keys
func (l *FeedList) Update(msg tea.Msg) tea.Cmd {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	// Typing mode
	if l.FilterFocused() {
		switch keyMsg.String() {
		case "esc":
			l.clearFilter()
			return nil
		case "enter":
			// Accept filter, blur input to allow navigation
			l.filterInput.Blur()
			return nil
		case "backspace":
			if l.filterInput.Value() == "" {
				l.clearFilter()
				return nil
			}
		}

		var cmd tea.Cmd
		l.filterInput, cmd = l.filterInput.Update(msg)
		l.applyFilter(true)
		return cmd
	}

	switch keyMsg.String() {
	case "/":
		l.filterActive = true
		l.recalcMaxVisible()
		return l.filterInput.Focus()
	case "esc":
		if l.filterActive {
			l.clearFilter()
		}
		return nil
	}

	count := l.Len()
	if count == 0 {
		return nil
	}

	switch keyMsg.String() {
	case "j", "down":
		if l.cursor < count-1 {
			l.cursor++
		}
	case "k", "up":
		if l.cursor > 0 {
			l.cursor--
		}
	case "g", "home":
		l.cursor = 0
	case "G", "end":
		l.cursor = count - 1
	case "ctrl+d", "pgdown":
		l.cursor = min(l.cursor+max(l.maxVisible/2, 1), count-1)
	case "ctrl+u", "pgup":
		l.cursor = max(l.cursor-max(l.maxVisible/2, 1), 0)
	}
	l.ensureVisible()
	return nil
}

func (l *FeedList) recalcMaxVisible() {
	// Interior minus title line and scroll indicators
	l.maxVisible = l.height - BorderHeight - ScrollIndicatorLines - 1
	if l.filterActive {
		l.maxVisible--
	}
	if l.loading {
		l.maxVisible--
	}
	if l.maxVisible < 1 {
		l.maxVisible = 1
	}
}

func (l *FeedList) ensureVisible() {
	if l.maxVisible <= 0 {
		return
	}
	if l.cursor < l.offset {
		l.offset = l.cursor
	}
	if l.cursor >= l.offset+l.maxVisible {
		l.offset = l.cursor - l.maxVisible + 1
	}
}

func (l *FeedList) clampCursor() {
	l.cursor = max(min(l.cursor, l.Len()-1), 0)
	l.ensureVisible()
}

func (l *FeedList) clearFilter() {
	l.filterActive = false
	l.filterQuery = ""
	l.matches = nil
	l.filterInput.SetValue("")
	l.filterInput.Blur()
	l.recalcMaxVisible()
	l.clampCursor()
}

func (l *FeedList) applyFilter(resetCursor bool) {
	l.filterQuery = l.filterInput.Value()
	if l.filterQuery == "" {
		l.matches = nil
		return
	}

	titles := make([]string, len(l.posts))
	for i, p := range l.posts {
		titles[i] = strings.ToLower(p.Title)
	}
	l.matches = fuzzy.Find(strings.ToLower(l.filterQuery), titles)
	if l.matches == nil {
		l.matches = fuzzy.Matches{}
	}

	if resetCursor {
		l.cursor = 0
		l.offset = 0
	}
}

func (l *FeedList) mapIndex(i int) int {
	if l.matches != nil && i < len(l.matches) {
		return l.matches[i].Index
	}
	return i
}

func (l *FeedList) matchedIndexes(i int) []int {
	if l.matches != nil && i < len(l.matches) {
		return l.matches[i].MatchedIndexes
	}
	return nil
}

// Render draws the list inside a border sized to the list dimensions
func (l *FeedList) Render() string {
	l.recalcMaxVisible()
	l.ensureVisible()

	style := styles.ActiveBorder
	frameW, frameH := style.GetFrameSize()
	return style.
		Width(max(l.width-frameW, 0)).
		Height(max(l.height-frameH, 0)).
		Render(l.renderContent())
}

func (l *FeedList) renderContent() string {
	itemWidth := max(l.width-BorderWidth, 20)
	titleLine := styles.AccentStyle.Render(styles.Truncate(l.title, itemWidth))

	count := l.Len()
	if count == 0 {
		msg := "No posts"
		switch {
		case l.loading:
			msg = SpinnerFrame(l.spinnerFrame) + " Loading..."
		case l.filterQuery != "":
			msg = "No matches"
		}
		content := titleLine + "\n \n" + styles.DimStyle.Render(msg) + "\n "
		if l.filterActive {
			content += "\n" + l.renderFilterBar()
		}
		return content
	}

	end := min(l.offset+l.maxVisible, count)
	lines := make([]string, 0, end-l.offset)
	for i := l.offset; i < end; i++ {
		idx := l.mapIndex(i)
		lines = append(lines, l.renderRow(l.posts[idx], l.matchedIndexes(i), i == l.cursor, itemWidth))
	}

	// Always reserve the indicator lines to prevent layout shifts
	header := " "
	if l.offset > 0 {
		header = styles.DimStyle.Render("↑ more")
	}
	footer := " "
	if end < count {
		footer = styles.DimStyle.Render("↓ more")
	}

	content := titleLine + "\n" + header + "\n" + strings.Join(lines, "\n") + "\n" + footer
	if l.loading {
		content += "\n" + styles.DimStyle.Render(SpinnerFrame(l.spinnerFrame)+" Loading more...")
	}
	if l.filterActive {
		content += "\n" + l.renderFilterBar()
	}
	return content
}

func (l *FeedList) renderRow(post domain.Post, matched []int, selected bool, width int) string {
	view := l.views[post.ID]
	st := view.State

	likeChar, likeFg := styles.UnlikedChar, styles.DimGray
	if st.IsLiked {
		likeChar, likeFg = styles.LikedChar, styles.Coral
	}
	markChar, markFg := styles.UnbookmarkedChar, styles.DimGray
	if st.IsBookmarked {
		markChar, markFg = styles.BookmarkedChar, styles.Amber
	}

	status, statusFg := " ", styles.DimGray
	switch {
	case view.Loading:
		status, statusFg = SpinnerFrame(l.spinnerFrame), styles.Coral
	case view.Error != "":
		status, statusFg = styles.ErrorChar, styles.Red
	}

	likes := fmt.Sprintf("%s %-4d", likeChar, st.LikeCount)
	meta := fmt.Sprintf("  %s · %s", post.Author, post.Age(l.now()))

	fixed := lipgloss.Width(likes) + lipgloss.Width(markChar) + lipgloss.Width(status) + lipgloss.Width(meta) + 5
	title := styles.Truncate(post.Title, max(width-fixed, 8))

	parts := []styles.RowPart{
		{Text: status + " ", Foreground: &statusFg},
		{Text: likes, Foreground: &likeFg},
		{Text: " "},
		{Text: markChar, Foreground: &markFg},
		{Text: " "},
	}
	parts = append(parts, highlight(title, matched)...)
	parts = append(parts, styles.RowPart{Text: meta, Foreground: ptr(styles.DimGray)})

	return styles.RenderListRow(parts, selected, width)
}

// highlight splits text into parts, marking the byte offsets in matched
func highlight(text string, matched []int) []styles.RowPart {
	if len(matched) == 0 {
		return []styles.RowPart{{Text: text}}
	}

	var parts []styles.RowPart
	var run strings.Builder
	runMatched := false
	flush := func() {
		if run.Len() == 0 {
			return
		}
		part := styles.RowPart{Text: run.String()}
		if runMatched {
			part.Foreground = ptr(styles.Amber)
			part.Bold = true
		}
		parts = append(parts, part)
		run.Reset()
	}

	for i, r := range text {
		isMatch := slices.Contains(matched, i)
		if isMatch != runMatched {
			flush()
			runMatched = isMatch
		}
		run.WriteRune(r)
	}
	flush()
	return parts
}

func ptr(c lipgloss.Color) *lipgloss.Color { return &c }

func (l *FeedList) renderFilterBar() string {
	bar := l.filterInput.View()
	if l.filterQuery != "" {
		bar += styles.DimStyle.Render(fmt.Sprintf(" [%d/%d]", l.Len(), len(l.posts)))
	}
	return bar
}
