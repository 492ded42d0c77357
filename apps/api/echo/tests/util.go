package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assessment"
	"github.com/trezcool/darasa/core/bookmark"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/enrollment"
	"github.com/trezcool/darasa/core/material"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/core/video"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	ratelimitsvc "github.com/trezcool/darasa/services/ratelimit"
	realtimesvc "github.com/trezcool/darasa/services/realtime"
	storagesvc "github.com/trezcool/darasa/services/storage"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	"github.com/trezcool/darasa/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testEnv struct {
	app  Server
	conf *core.Config
	hub  *realtimesvc.Hub

	usrRepo user.Repository
	crsRepo course.Repository
	enrRepo enrollment.Repository
	matRepo material.Repository
	asmRepo assessment.Repository

	usrSvc   user.Service
	videoDir string
}

type setupOption func(*Options)

func setup(t *testing.T, opts ...setupOption) *testEnv {
	conf := core.NewTestConfig()
	logger := logsvc.NewNopLogger()
	validate, translator := testutil.NewValidator()

	// set up DB & repos
	db := inmemdb.Open()
	env := &testEnv{
		conf:     conf,
		hub:      realtimesvc.NewHub(logger),
		usrRepo:  inmemdb.NewUserRepository(db),
		crsRepo:  inmemdb.NewCourseRepository(db),
		enrRepo:  inmemdb.NewEnrollmentRepository(db),
		matRepo:  inmemdb.NewMaterialRepository(db),
		asmRepo:  inmemdb.NewAssessmentRepository(db),
		videoDir: t.TempDir(),
	}

	bucket, err := storagesvc.NewLocalBucket(t.TempDir(), conf.Storage.PublicBaseURL)
	if err != nil {
		t.Fatalf("NewLocalBucket() failed: %v", err)
	}

	// set up services
	emailsvc.ResetSentMessages()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	env.usrSvc = user.NewServiceMock(env.usrRepo, mailSvc, conf)
	crsSvc := course.NewService(env.crsRepo, env.hub, logger)
	enrSvc := enrollment.NewService(env.enrRepo, crsSvc, env.usrSvc, mailSvc, env.hub, logger)
	matSvc := material.NewService(env.matRepo, crsSvc, enrSvc, bucket, env.hub, logger)
	crsSvc.OnDelete(matSvc.ReleaseCourse)
	asmSvc := assessment.NewService(env.asmRepo, crsSvc, enrSvc, env.usrSvc, mailSvc, env.hub, logger)
	bmSvc := bookmark.NewService(inmemdb.NewBookmarkRepository(db), crsSvc)

	// set up server
	options := &Options{
		Conf:           conf,
		DisableReqLogs: true,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		UserSvc:        env.usrSvc,
		CourseSvc:      crsSvc,
		EnrollmentSvc:  enrSvc,
		MaterialSvc:    matSvc,
		AssessmentSvc:  asmSvc,
		BookmarkSvc:    bmSvc,
		MailSvc:        mailSvc,
		Hub:            env.hub,
		Videos:         video.NewLibrary(env.videoDir, logger),
		Bucket:         bucket,
		AuthLimiter:    ratelimitsvc.NewMemoryLimiter(conf.Server.AuthRateLimit, conf.Server.AuthRateWindow),
	}
	for _, opt := range opts {
		opt(options)
	}
	env.app = NewServer(options, nil)
	return env
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// do runs a request against the app and returns the recorder.
func (env *testEnv) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	env.app.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) getToken(t *testing.T, usr user.User) string {
	token, err := GenerateToken(env.conf, GetUserClaims(env.conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// runTests runs table tests that only check the status code and, optionally, the body.
func runTests(t *testing.T, env *testEnv, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}
