package photo

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/photoshare/photoshare-web/internal/pkg/taskqueue"
)

// memRepository keeps photos in a map, mirroring the SQL ordering and filters
type memRepository struct {
	mu     sync.Mutex
	nextID int64
	photos map[int64]*Photo
}

func newMemRepository() *memRepository {
	return &memRepository{photos: make(map[int64]*Photo)}
}

func clonePhoto(p *Photo) *Photo {
	cp := *p
	cp.Tags = append([]string(nil), p.Tags...)
	cp.Comments = append(Comments(nil), p.Comments...)
	if p.Thumbnail != nil {
		cp.Thumbnail = append([]byte(nil), p.Thumbnail...)
	}
	return &cp
}

func (r *memRepository) Create(ctx context.Context, photo *Photo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	photo.ID = r.nextID
	photo.CreatedAt = time.Now()
	r.photos[photo.ID] = clonePhoto(photo)
	return nil
}

func (r *memRepository) GetByID(ctx context.Context, id int64) (*Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.photos[id]
	if !ok {
		return nil, nil
	}
	return clonePhoto(p), nil
}

func (r *memRepository) Update(ctx context.Context, photo *Photo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.photos[photo.ID]; !ok {
		return ErrPhotoNotFound
	}
	r.photos[photo.ID] = clonePhoto(photo)
	return nil
}

func (r *memRepository) filter(keep func(*Photo) bool) []*Photo {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Photo
	for _, p := range r.photos {
		if keep(p) {
			out = append(out, clonePhoto(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func hasTag(p *Photo, tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (r *memRepository) ListByOwner(ctx context.Context, owner string) ([]*Photo, error) {
	return r.filter(func(p *Photo) bool { return p.Owner == owner }), nil
}

func (r *memRepository) ListPublic(ctx context.Context) ([]*Photo, error) {
	return r.filter(func(p *Photo) bool { return !p.Private }), nil
}

func (r *memRepository) ListPublicOrOwned(ctx context.Context, owner string) ([]*Photo, error) {
	return r.filter(func(p *Photo) bool { return !p.Private || p.Owner == owner }), nil
}

func (r *memRepository) ListPublicByTag(ctx context.Context, tag string) ([]*Photo, error) {
	return r.filter(func(p *Photo) bool { return !p.Private && hasTag(p, tag) }), nil
}

func (r *memRepository) ListOwnedByTag(ctx context.Context, owner, tag string) ([]*Photo, error) {
	return r.filter(func(p *Photo) bool { return p.Owner == owner && hasTag(p, tag) }), nil
}

func (r *memRepository) ListUnthumbnailedIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	for _, p := range r.filter(func(p *Photo) bool { return !p.Thumbnailed }) {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// recordingQueue captures added tasks
type recordingQueue struct {
	mu    sync.Mutex
	tasks []*taskqueue.Task
	err   error
}

func (q *recordingQueue) Add(ctx context.Context, task *taskqueue.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) Tasks() []*taskqueue.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*taskqueue.Task(nil), q.tasks...)
}

var errQueueDown = errors.New("queue down")

// recordingNotifier captures ThumbnailReady calls
type recordingNotifier struct {
	mu  sync.Mutex
	ids []int64
}

func (n *recordingNotifier) ThumbnailReady(ctx context.Context, photoID int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, photoID)
	return nil
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
