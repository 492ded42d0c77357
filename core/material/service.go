package material

import (
	"context"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
)

const eventTable = "course_materials"

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("material")
	ErrInvalidReorder = errors.New("ids must list every material of the course exactly once")
)

type (
	Repository interface {
		CreateMaterial(ctx context.Context, mat Material) (Material, error)
		GetMaterial(ctx context.Context, id string) (Material, error)
		// QueryMaterials lists a course's materials ordered by position.
		QueryMaterials(ctx context.Context, courseID string) ([]Material, error)
		UpdateMaterial(ctx context.Context, mat Material) (Material, error)
		DeleteMaterial(ctx context.Context, id string) error
		// SetPositions updates the positions of the given materials atomically.
		SetPositions(ctx context.Context, courseID string, positions map[string]int) error
	}

	// Bucket stores uploaded material files.
	Bucket interface {
		Upload(ctx context.Context, key string, r io.Reader, contentType string) error
		Delete(ctx context.Context, key string) error
		PublicURL(key string) string
	}

	// EnrollmentChecker tells whether a student may access a course's content.
	EnrollmentChecker interface {
		IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
	}

	Service interface {
		Add(ctx context.Context, actor core.Actor, courseID string, nm NewMaterial) (Material, error)
		Upload(ctx context.Context, actor core.Actor, courseID string, up Upload, r io.Reader) (Material, error)
		List(ctx context.Context, actor core.Actor, courseID string) ([]Material, error)
		Get(ctx context.Context, actor core.Actor, id string) (Material, error)
		Update(ctx context.Context, actor core.Actor, id string, um UpdateMaterial) (Material, error)
		Delete(ctx context.Context, actor core.Actor, id string) error
		Reorder(ctx context.Context, actor core.Actor, courseID string, ids []string) ([]Material, error)
		// ReleaseCourse is a course.DeleteHook: it collects the course's stored files
		// and returns the func that deletes them from the bucket.
		ReleaseCourse(ctx context.Context, crs course.Course) (func(context.Context), error)
	}

	service struct {
		repo        Repository
		courses     course.Service
		enrollments EnrollmentChecker
		bucket      Bucket
		events      core.EventPublisher
		logger      core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	courses course.Service,
	enrollments EnrollmentChecker,
	bucket Bucket,
	events core.EventPublisher,
	logger core.Logger,
) Service {
	return &service{
		repo:        repo,
		courses:     courses,
		enrollments: enrollments,
		bucket:      bucket,
		events:      events,
		logger:      logger,
	}
}

func (svc *service) publish(ctx context.Context, typ string, mat Material) {
	if err := svc.events.Publish(ctx, core.NewEvent(eventTable, typ, mat)); err != nil {
		svc.logger.Warn("publishing material event", errors.Wrap(err, "publishing event"))
	}
}

// canAccess: course managers & enrolled students.
func (svc *service) canAccess(ctx context.Context, actor core.Actor, courseID string) (course.Course, error) {
	crs, err := svc.courses.Get(ctx, actor, courseID)
	if err != nil {
		return course.Course{}, err
	}
	if actor.CanManage(crs.InstructorID) {
		return crs, nil
	}
	enrolled, err := svc.enrollments.IsEnrolled(ctx, actor.ID, crs.ID)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return course.Course{}, core.ErrForbidden
	}
	return crs, nil
}

func (svc *service) nextPosition(ctx context.Context, courseID string) (int, error) {
	mats, err := svc.repo.QueryMaterials(ctx, courseID)
	if err != nil {
		return 0, errors.Wrap(err, "querying materials")
	}
	var max int
	for _, m := range mats {
		if m.Position > max {
			max = m.Position
		}
	}
	return max + 1, nil
}

func (svc *service) create(ctx context.Context, mat Material) (Material, error) {
	pos, err := svc.nextPosition(ctx, mat.CourseID)
	if err != nil {
		return Material{}, err
	}
	mat.ID = uuid.NewString()
	mat.Position = pos
	mat.CreatedAt = time.Now().UTC()

	if mat, err = svc.repo.CreateMaterial(ctx, mat); err != nil {
		return Material{}, errors.Wrap(err, "creating material")
	}
	svc.publish(ctx, core.EventInsert, mat)
	return mat, nil
}

func (svc *service) Add(ctx context.Context, actor core.Actor, courseID string, nm NewMaterial) (Material, error) {
	crs, err := svc.courses.GetManaged(ctx, actor, courseID)
	if err != nil {
		return Material{}, err
	}
	return svc.create(ctx, Material{
		CourseID:        crs.ID,
		Title:           nm.Title,
		Kind:            nm.Kind,
		URL:             nm.URL,
		DurationSeconds: nm.DurationSeconds,
	})
}

func (svc *service) Upload(ctx context.Context, actor core.Actor, courseID string, up Upload, r io.Reader) (Material, error) {
	crs, err := svc.courses.GetManaged(ctx, actor, courseID)
	if err != nil {
		return Material{}, err
	}

	ext := strings.ToLower(path.Ext(up.Filename))
	key := path.Join("courses", crs.ID, uuid.NewString()+ext)
	ct := up.ContentType
	if ct == "" || ct == "application/octet-stream" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			ct = byExt
		}
	}
	if err := svc.bucket.Upload(ctx, key, r, ct); err != nil {
		return Material{}, errors.Wrap(err, "uploading material")
	}

	title := core.CleanString(up.Title)
	if title == "" {
		title = strings.TrimSuffix(path.Base(up.Filename), path.Ext(up.Filename))
	}
	mat, err := svc.create(ctx, Material{
		CourseID:        crs.ID,
		Title:           title,
		Kind:            KindFromFilename(up.Filename),
		URL:             svc.bucket.PublicURL(key),
		StorageKey:      key,
		DurationSeconds: up.DurationSeconds,
	})
	if err != nil {
		if dErr := svc.bucket.Delete(ctx, key); dErr != nil {
			svc.logger.Warn("removing orphan upload", errors.Wrap(dErr, "deleting object"))
		}
		return Material{}, err
	}
	return mat, nil
}

func (svc *service) List(ctx context.Context, actor core.Actor, courseID string) ([]Material, error) {
	crs, err := svc.canAccess(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryMaterials(ctx, crs.ID)
}

func (svc *service) Get(ctx context.Context, actor core.Actor, id string) (Material, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Material{}, ErrNotFound
	}
	mat, err := svc.repo.GetMaterial(ctx, id)
	if err != nil {
		return Material{}, err
	}
	if _, err := svc.canAccess(ctx, actor, mat.CourseID); err != nil {
		return Material{}, err
	}
	return mat, nil
}

func (svc *service) getManaged(ctx context.Context, actor core.Actor, id string) (Material, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Material{}, ErrNotFound
	}
	mat, err := svc.repo.GetMaterial(ctx, id)
	if err != nil {
		return Material{}, err
	}
	if _, err := svc.courses.GetManaged(ctx, actor, mat.CourseID); err != nil {
		return Material{}, err
	}
	return mat, nil
}

func (svc *service) Update(ctx context.Context, actor core.Actor, id string, um UpdateMaterial) (Material, error) {
	mat, err := svc.getManaged(ctx, actor, id)
	if err != nil {
		return Material{}, err
	}
	if um.Title != nil {
		mat.Title = *um.Title
	}
	if um.Kind != nil && *um.Kind != "" {
		mat.Kind = *um.Kind
	}
	if um.URL != nil && *um.URL != "" && *um.URL != mat.URL {
		mat.URL = core.CleanString(*um.URL)
		mat.StorageKey = "" // no longer points at our bucket
	}
	if um.DurationSeconds != nil {
		mat.DurationSeconds = *um.DurationSeconds
	}

	if mat, err = svc.repo.UpdateMaterial(ctx, mat); err != nil {
		return Material{}, errors.Wrap(err, "updating material")
	}
	svc.publish(ctx, core.EventUpdate, mat)
	return mat, nil
}

func (svc *service) Delete(ctx context.Context, actor core.Actor, id string) error {
	mat, err := svc.getManaged(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := svc.repo.DeleteMaterial(ctx, mat.ID); err != nil {
		return errors.Wrap(err, "deleting material")
	}
	if mat.StorageKey != "" {
		if err := svc.bucket.Delete(ctx, mat.StorageKey); err != nil {
			svc.logger.Warn("deleting material object", errors.Wrap(err, "deleting object"))
		}
	}
	svc.publish(ctx, core.EventDelete, mat)
	return nil
}

func (svc *service) ReleaseCourse(ctx context.Context, crs course.Course) (func(context.Context), error) {
	mats, err := svc.repo.QueryMaterials(ctx, crs.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying materials")
	}
	var keys []string
	for _, mat := range mats {
		if mat.StorageKey != "" {
			keys = append(keys, mat.StorageKey)
		}
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return func(ctx context.Context) {
		for _, key := range keys {
			if err := svc.bucket.Delete(ctx, key); err != nil {
				svc.logger.Warn("deleting material object", errors.Wrap(err, "deleting object"), map[string]interface{}{"course_id": crs.ID, "key": key})
			}
		}
	}, nil
}

func (svc *service) Reorder(ctx context.Context, actor core.Actor, courseID string, ids []string) ([]Material, error) {
	crs, err := svc.courses.GetManaged(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}
	mats, err := svc.repo.QueryMaterials(ctx, crs.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying materials")
	}

	if len(ids) != len(mats) {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "ids", Error: ErrInvalidReorder.Error()})
	}
	known := make(map[string]bool, len(mats))
	for _, m := range mats {
		known[m.ID] = true
	}
	positions := make(map[string]int, len(ids))
	for i, id := range ids {
		if !known[id] {
			return nil, core.NewValidationError(nil, core.FieldError{Field: "ids", Error: ErrInvalidReorder.Error()})
		}
		if _, dup := positions[id]; dup {
			return nil, core.NewValidationError(nil, core.FieldError{Field: "ids", Error: ErrInvalidReorder.Error()})
		}
		positions[id] = i + 1
	}

	if err := svc.repo.SetPositions(ctx, crs.ID, positions); err != nil {
		return nil, errors.Wrap(err, "setting positions")
	}
	return svc.repo.QueryMaterials(ctx, crs.ID)
}
