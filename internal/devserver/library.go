package devserver

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/me/libra/pkg/model"
)

// Errors returned by Library operations; handlers map them to status codes.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidLogin      = errors.New("invalid credentials")
	ErrUsernameTaken     = errors.New("a user with that username already exists")
	ErrNoCopies          = errors.New("no copies of this book are available")
	ErrPastDueDate       = errors.New("due date cannot be in the past")
	ErrAlreadyBorrowing  = errors.New("you already have an active request or borrowing for this book")
	ErrNotCancellable    = errors.New("only requested borrowings can be cancelled")
	ErrInvalidTransition = errors.New("invalid borrowing transition")
)

type account struct {
	profile      model.UserProfile
	passwordHash []byte
}

// Library is the in-memory state of the development backend.
type Library struct {
	mu sync.Mutex

	now func() time.Time

	nextUserID   int64
	accounts     map[string]*account // by username
	tokens       map[string]string   // token → username
	books        []*model.Book
	favorites    map[string]map[int64]bool
	borrowings   []*borrowingRecord
	nextBorrowID int64
	notes        map[string][]model.Notification
	nextNoteID   int64
	devices      map[string][]string
	resets       []string
}

type borrowingRecord struct {
	owner string
	model.Borrowing
}

// NewLibrary creates a Library holding the catalog and accounts of seed.
func NewLibrary(seed *Seed) (*Library, error) {
	l := &Library{
		now:       time.Now,
		accounts:  make(map[string]*account),
		tokens:    make(map[string]string),
		favorites: make(map[string]map[int64]bool),
		notes:     make(map[string][]model.Notification),
		devices:   make(map[string][]string),
	}
	if seed == nil {
		seed = DefaultSeed()
	}
	for i, b := range seed.Books {
		book := b.toModel(int64(i + 1))
		l.books = append(l.books, &book)
	}
	for _, u := range seed.Users {
		if _, err := l.createAccount(model.Registration{
			Username: u.Username,
			Email:    u.Email,
			FullName: u.FullName,
			Password: u.Password,
		}); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Library) createAccount(reg model.Registration) (*account, error) {
	if _, ok := l.accounts[reg.Username]; ok {
		return nil, ErrUsernameTaken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	l.nextUserID++
	acc := &account{
		profile: model.UserProfile{
			ID:       l.nextUserID,
			Username: reg.Username,
			Email:    reg.Email,
			FullName: reg.FullName,
		},
		passwordHash: hash,
	}
	l.accounts[reg.Username] = acc
	return acc, nil
}

func (l *Library) issueToken(username string) string {
	tok := strings.ReplaceAll(uuid.NewString(), "-", "")
	l.tokens[tok] = username
	return tok
}

// Register creates an account and returns its first token.
func (l *Library) Register(reg model.Registration) (*model.AuthResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, err := l.createAccount(reg)
	if err != nil {
		return nil, err
	}
	u := acc.profile
	return &model.AuthResponse{Token: l.issueToken(reg.Username), User: &u}, nil
}

// Login checks the password and issues a new token.
func (l *Library) Login(username, password string) (*model.AuthResponse, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[username]
	if !ok {
		return nil, ErrInvalidLogin
	}
	if err := bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(password)); err != nil {
		return nil, ErrInvalidLogin
	}
	u := acc.profile
	return &model.AuthResponse{Token: l.issueToken(username), User: &u}, nil
}

// Authenticate returns the username owning token.
func (l *Library) Authenticate(token string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	u, ok := l.tokens[token]
	return u, ok
}

// RevokeToken invalidates token, as a logout or server-side expiry does.
func (l *Library) RevokeToken(token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.tokens, token)
}

// RequestPasswordReset records the request if the email is known.
func (l *Library) RequestPasswordReset(email string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, acc := range l.accounts {
		if strings.EqualFold(acc.profile.Email, email) {
			l.resets = append(l.resets, acc.profile.Username)
		}
	}
}

// PasswordResets returns the usernames that requested a reset.
func (l *Library) PasswordResets() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.resets...)
}

// Profile returns the profile of username.
func (l *Library) Profile(username string) (model.UserProfile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[username]
	if !ok {
		return model.UserProfile{}, ErrNotFound
	}
	return acc.profile, nil
}

// UpdateProfile applies the non-nil fields of upd.
func (l *Library) UpdateProfile(username string, upd model.ProfileUpdate) (model.UserProfile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[username]
	if !ok {
		return model.UserProfile{}, ErrNotFound
	}
	p := &acc.profile
	for dst, src := range map[*string]*string{
		&p.FullName:        upd.FullName,
		&p.FirstName:       upd.FirstName,
		&p.LastName:        upd.LastName,
		&p.MiddleInitial:   upd.MiddleInitial,
		&p.Suffix:          upd.Suffix,
		&p.PhoneNumber:     upd.PhoneNumber,
		&p.PhysicalAddress: upd.PhysicalAddress,
	} {
		if src != nil {
			*dst = *src
		}
	}
	if upd.BirthDate != nil {
		d := *upd.BirthDate
		p.BirthDate = &d
	}
	return acc.profile, nil
}

// RegisterDevice stores a push token for username.
func (l *Library) RegisterDevice(username, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.devices[username] {
		if t == token {
			return
		}
	}
	l.devices[username] = append(l.devices[username], token)
}

// Devices returns the push tokens registered for username.
func (l *Library) Devices(username string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.devices[username]...)
}

// occupying reports whether a borrowing holds a copy.
func occupying(s model.BorrowingState) bool {
	switch s {
	case model.BorrowingRequested, model.BorrowingActive, model.BorrowingOverdue, model.BorrowingPendingReturn:
		return true
	}
	return false
}

// view renders a book for username with computed availability and favorite
// flag. The caller holds l.mu.
func (l *Library) view(b *model.Book, username string) model.Book {
	out := *b
	taken := 0
	for _, r := range l.borrowings {
		if r.BookID == b.ID && occupying(r.Status) {
			taken++
		}
	}
	avail := b.Quantity - taken
	if avail < 0 {
		avail = 0
	}
	isAvail := avail > 0
	out.AvailableCopiesCount = &avail
	out.IsAvailable = &isAvail
	out.IsFavorite = l.favorites[username][b.ID]
	return out
}

func (l *Library) book(id int64) *model.Book {
	for _, b := range l.books {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// Books lists the catalog filtered by search text and genre name.
func (l *Library) Books(username, search, genre string) []model.Book {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []model.Book{}
	for _, b := range l.books {
		if search != "" && !b.Matches(search) {
			continue
		}
		if genre != "" && !hasGenre(b, genre) {
			continue
		}
		out = append(out, l.view(b, username))
	}
	return out
}

func hasGenre(b *model.Book, genre string) bool {
	for _, g := range b.Genres {
		if strings.EqualFold(g.Name, genre) {
			return true
		}
	}
	return false
}

// Book returns one book as seen by username.
func (l *Library) Book(username string, id int64) (model.Book, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.book(id)
	if b == nil {
		return model.Book{}, ErrNotFound
	}
	return l.view(b, username), nil
}

// SetFavorite adds or removes a favorite and returns the updated book.
func (l *Library) SetFavorite(username string, id int64, fav bool) (model.Book, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.book(id)
	if b == nil {
		return model.Book{}, ErrNotFound
	}
	if l.favorites[username] == nil {
		l.favorites[username] = make(map[int64]bool)
	}
	if fav {
		l.favorites[username][id] = true
	} else {
		delete(l.favorites[username], id)
	}
	return l.view(b, username), nil
}

// Favorites lists the books username marked.
func (l *Library) Favorites(username string) []model.Book {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []model.Book{}
	for _, b := range l.books {
		if l.favorites[username][b.ID] {
			out = append(out, l.view(b, username))
		}
	}
	return out
}

// Borrowings lists username's borrowings, newest first, optionally for one
// book.
func (l *Library) Borrowings(username string, bookID int64) []model.Borrowing {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []model.Borrowing{}
	for i := len(l.borrowings) - 1; i >= 0; i-- {
		r := l.borrowings[i]
		if r.owner != username || (bookID != 0 && r.BookID != bookID) {
			continue
		}
		out = append(out, l.render(r, username))
	}
	return out
}

// render nests the book into the record. The caller holds l.mu.
func (l *Library) render(r *borrowingRecord, username string) model.Borrowing {
	out := r.Borrowing
	if b := l.book(r.BookID); b != nil {
		v := l.view(b, username)
		out.Book = &v
	}
	return out
}

// Borrowing returns one of username's borrowings.
func (l *Library) Borrowing(username string, id int64) (model.Borrowing, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.record(id)
	if r == nil || r.owner != username {
		return model.Borrowing{}, ErrNotFound
	}
	return l.render(r, username), nil
}

func (l *Library) record(id int64) *borrowingRecord {
	for _, r := range l.borrowings {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// RequestBorrow files a borrow request for bookID due on due.
func (l *Library) RequestBorrow(username string, bookID int64, due model.Date) (model.Borrowing, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.book(bookID)
	if b == nil {
		return model.Borrowing{}, ErrNotFound
	}
	for _, r := range l.borrowings {
		if r.owner == username && r.BookID == bookID && occupying(r.Status) {
			return model.Borrowing{}, ErrAlreadyBorrowing
		}
	}
	if v := l.view(b, username); *v.AvailableCopiesCount == 0 {
		return model.Borrowing{}, ErrNoCopies
	}
	now := l.now()
	if due.Before(model.DateOf(now)) {
		return model.Borrowing{}, ErrPastDueDate
	}

	l.nextBorrowID++
	r := &borrowingRecord{
		owner: username,
		Borrowing: model.Borrowing{
			ID:          l.nextBorrowID,
			BookID:      bookID,
			Status:      model.BorrowingRequested,
			RequestDate: &now,
			DueDate:     &due,
			IsActive:    true,
		},
	}
	l.borrowings = append(l.borrowings, r)
	l.notify(username, "request", "Borrow request received",
		"Your request to borrow \""+b.Title+"\" was received.")
	return l.render(r, username), nil
}

// CancelRequest withdraws a REQUESTED borrowing.
func (l *Library) CancelRequest(username string, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.record(id)
	if r == nil || r.owner != username {
		return ErrNotFound
	}
	if r.Status != model.BorrowingRequested {
		return ErrNotCancellable
	}
	r.Status = model.BorrowingCancelled
	r.IsActive = false
	title := ""
	if b := l.book(r.BookID); b != nil {
		title = b.Title
	}
	l.notify(username, "cancel", "Request cancelled", "Your request for \""+title+"\" was cancelled.")
	return nil
}

// Approve moves a REQUESTED borrowing to ACTIVE, as a librarian would.
func (l *Library) Approve(id int64) error {
	return l.advance(id, model.BorrowingRequested, model.BorrowingActive, "Request approved")
}

// Return closes an ACTIVE or OVERDUE borrowing.
func (l *Library) Return(id int64) error {
	l.mu.Lock()
	r := l.record(id)
	late := r != nil && r.Status == model.BorrowingOverdue
	l.mu.Unlock()
	if late {
		return l.advance(id, model.BorrowingOverdue, model.BorrowingReturnedLate, "Book returned late")
	}
	return l.advance(id, model.BorrowingActive, model.BorrowingReturned, "Book returned")
}

func (l *Library) advance(id int64, from, to model.BorrowingState, title string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := l.record(id)
	if r == nil {
		return ErrNotFound
	}
	if r.Status != from {
		return ErrInvalidTransition
	}
	now := l.now()
	r.Status = to
	switch to {
	case model.BorrowingActive:
		r.IssueDate = &now
	case model.BorrowingReturned, model.BorrowingReturnedLate:
		r.ReturnDate = &now
		r.IsActive = false
	}
	l.notify(r.owner, strings.ToLower(string(to)), title, "Borrowing #"+strconv.FormatInt(r.ID, 10)+" is now "+to.Label()+".")
	return nil
}

// notify appends a notification for username. The caller holds l.mu.
func (l *Library) notify(username, kind, title, message string) {
	l.nextNoteID++
	now := l.now()
	l.notes[username] = append(l.notes[username], model.Notification{
		ID:        l.nextNoteID,
		Title:     title,
		Message:   message,
		Kind:      kind,
		CreatedAt: &now,
	})
}

// Notifications lists username's notifications, newest first.
func (l *Library) Notifications(username string) []model.Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := append([]model.Notification{}, l.notes[username]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// MarkRead marks one notification read.
func (l *Library) MarkRead(username string, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.notes[username] {
		if l.notes[username][i].ID == id {
			l.notes[username][i].Read = true
			return nil
		}
	}
	return ErrNotFound
}

// ClearNotifications deletes all of username's notifications.
func (l *Library) ClearNotifications(username string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.notes, username)
}
