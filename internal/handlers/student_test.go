// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edustream/internal/models"
	"edustream/internal/session"
)

// studentFixture is a teacher with one paid course and a student who does
// not own it yet.
type studentFixture struct {
	teacher *models.User
	student *models.User
	course  *models.Course
}

func newStudentFixture(t *testing.T, env *testEnv, price string) studentFixture {
	t.Helper()
	teacher := env.createUser(t, models.RoleTeacher)
	return studentFixture{
		teacher: teacher,
		student: env.createUser(t, models.RoleStudent),
		course:  env.createCourse(t, teacher, "Course "+uuid.NewString()[:8], price),
	}
}

func courseRequest(method, path string, courseID uuid.UUID, form url.Values) *http.Request {
	var req *http.Request
	if form != nil {
		req = formRequest(path, form)
		req.Method = method
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	return withChiURLParams(req, "courseID", courseID.String())
}

func (env *testEnv) enrolled(t *testing.T, student *models.User, course *models.Course) bool {
	t.Helper()
	ok, err := env.Enrollments.Exists(context.Background(), student.ID, course.ID)
	require.NoError(t, err)
	return ok
}

func TestStudentDashboardListsEnrollments(t *testing.T) {
	env := newTestEnv(t)
	fx := newStudentFixture(t, env, "9.99")
	env.enroll(t, fx.student, fx.course)

	rec := serve(env.Student.Dashboard, httptest.NewRequest(http.MethodGet, "/student/dashboard", nil), loggedIn(fx.student))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), fx.course.Title)
}

func TestCourseListHidesOwnedCourses(t *testing.T) {
	env := newTestEnv(t)
	fx := newStudentFixture(t, env, "9.99")
	other := env.createCourse(t, fx.teacher, "Other "+uuid.NewString()[:8], "0")
	env.enroll(t, fx.student, fx.course)

	rec := serve(env.Student.CourseList, httptest.NewRequest(http.MethodGet, "/student/courses", nil), loggedIn(fx.student))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, fx.course.Title)
	assert.Contains(t, body, other.Title)
}

func TestCourseListSearch(t *testing.T) {
	env := newTestEnv(t)
	fx := newStudentFixture(t, env, "9.99")
	marker := "Zebra" + uuid.NewString()[:6]
	match := env.createCourse(t, fx.teacher, marker+" basics", "5")

	req := httptest.NewRequest(http.MethodGet, "/student/courses?q="+url.QueryEscape(strings.ToLower(marker)), nil)
	rec := serve(env.Student.CourseList, req, loggedIn(fx.student))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), match.Title)
	assert.NotContains(t, rec.Body.String(), fx.course.Title)
}

func TestCourseDetail(t *testing.T) {
	env := newTestEnv(t)
	fx := newStudentFixture(t, env, "9.99")

	t.Run("found", func(t *testing.T) {
		rec := serve(env.Student.CourseDetail, courseRequest(http.MethodGet, "/", fx.course.ID, nil), loggedIn(fx.student))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), fx.course.Title)
		assert.Contains(t, rec.Body.String(), "$9.99")
	})

	t.Run("unknown course", func(t *testing.T) {
		rec := serve(env.Student.CourseDetail, courseRequest(http.MethodGet, "/", uuid.New(), nil), loggedIn(fx.student))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		req := withChiURLParams(httptest.NewRequest(http.MethodGet, "/", nil), "courseID", "not-a-uuid")
		rec := serve(env.Student.CourseDetail, req, loggedIn(fx.student))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPurchaseConfirmOffersGateway(t *testing.T) {
	env := newTestEnv(t)
	fx := newStudentFixture(t, env, "19.00")

	rec := serve(env.Student.PurchaseConfirm, courseRequest(http.MethodGet, "/", fx.course.ID, nil), loggedIn(fx.student))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="paypal"`)
	assert.Contains(t, rec.Body.String(), `value="simulate"`)
}

func TestPurchaseConfirmRedirectsOwners(t *testing.T) {
	env := newTestEnv(t)
	fx := newStudentFixture(t, env, "19.00")
	env.enroll(t, fx.student, fx.course)

	sess := loggedIn(fx.student)
	rec := serve(env.Student.PurchaseConfirm, courseRequest(http.MethodGet, "/", fx.course.ID, nil), sess)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, courseContentPath(fx.course.ID), rec.Header().Get("Location"))
	assert.Equal(t, session.FlashInfo, lastFlash(sess).Level)
}

func TestSimulatedPurchaseEnrolls(t *testing.T) {
	env := newTestEnv(t)
	fx := newStudentFixture(t, env, "9.99")
	sess := loggedIn(fx.student)

	rec := serve(env.Student.Purchase, courseRequest(http.MethodPost, "/", fx.course.ID, url.Values{"action": {"simulate"}}), sess)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, courseContentPath(fx.course.ID), rec.Header().Get("Location"))
	assert.Equal(t, session.FlashSuccess, lastFlash(sess).Level)
	assert.Contains(t, lastFlash(sess).Message, fx.course.Title)
	assert.True(t, env.enrolled(t, fx.student, fx.course))
	assert.Zero(t, env.Gateway.captures(), "simulated purchase must not touch the gateway")

	// Buying again keeps the single enrollment.
	again := loggedIn(fx.student)
	rec = serve(env.Student.Purchase, courseRequest(http.MethodPost, "/", fx.course.ID, url.Values{"action": {"simulate"}}), again)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, session.FlashInfo, lastFlash(again).Level)
	assert.Contains(t, lastFlash(again).Message, "already enrolled")

	list, err := env.Enrollments.ListByStudent(context.Background(), fx.student.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGatewayCheckoutRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	fx := newStudentFixture(t, env, "25.50")
	sess := loggedIn(fx.student)

	rec := serve(env.Student.Purchase, courseRequest(http.MethodPost, "/", fx.course.ID, url.Values{"action": {"paypal"}}), sess)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "https://checkout.test/approve"))
	require.NotNil(t, sess.PendingPurchase)
	assert.Equal(t, fx.course.ID, sess.PendingPurchase.CourseID)
	assert.Equal(t, fx.student.ID, sess.PendingPurchase.StudentID)
	assert.False(t, env.enrolled(t, fx.student, fx.course), "approval alone grants nothing")

	// Query parameters from the provider are ignored.
	ret := httptest.NewRequest(http.MethodGet, "/student/paypal/return?token=FORGED", nil)
	rec = serve(env.Student.PayPalReturn, ret, sess)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, courseContentPath(fx.course.ID), rec.Header().Get("Location"))
	assert.Nil(t, sess.PendingPurchase)
	assert.Equal(t, session.FlashSuccess, lastFlash(sess).Level)
	assert.True(t, env.enrolled(t, fx.student, fx.course))
	assert.Equal(t, 1, env.Gateway.captures())
}

func TestGatewayReturnNotCompleted(t *testing.T) {
	env := newTestEnv(t)
	env.Gateway.captureStatus = "PENDING"
	fx := newStudentFixture(t, env, "25.50")
	sess := loggedIn(fx.student)

	serve(env.Student.Purchase, courseRequest(http.MethodPost, "/", fx.course.ID, url.Values{"action": {"paypal"}}), sess)
	require.NotNil(t, sess.PendingPurchase)

	rec := serve(env.Student.PayPalReturn, httptest.NewRequest(http.MethodGet, "/", nil), sess)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, coursePath(fx.course.ID), rec.Header().Get("Location"))
	assert.Contains(t, lastFlash(sess).Message, "Status: PENDING")
	assert.Nil(t, sess.PendingPurchase)
	assert.False(t, env.enrolled(t, fx.student, fx.course))
}

func TestGatewayReturnRejectsStaleOrForeignCheckout(t *testing.T) {
	env := newTestEnv(t)
	fx := newStudentFixture(t, env, "25.50")

	tests := []struct {
		name    string
		pending *models.PendingPurchase
	}{
		{"missing", nil},
		{"expired", &models.PendingPurchase{
			OrderID: "ORDER-OLD", CourseID: fx.course.ID, StudentID: fx.student.ID,
			CreatedAt: time.Now().Add(-4 * time.Hour),
		}},
		{"other student", &models.PendingPurchase{
			OrderID: "ORDER-X", CourseID: fx.course.ID, StudentID: uuid.New(),
			CreatedAt: time.Now(),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := loggedIn(fx.student)
			sess.PendingPurchase = tt.pending

			rec := serve(env.Student.PayPalReturn, httptest.NewRequest(http.MethodGet, "/", nil), sess)

			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, studentDashboardPath, rec.Header().Get("Location"))
			assert.Equal(t, session.FlashError, lastFlash(sess).Level)
			assert.Nil(t, sess.PendingPurchase)
		})
	}
	assert.Zero(t, env.Gateway.captures())
	assert.False(t, env.enrolled(t, fx.student, fx.course))
}

func TestGatewayCancelClearsCheckout(t *testing.T) {
	env := newTestEnv(t)
	fx := newStudentFixture(t, env, "25.50")
	sess := loggedIn(fx.student)
	sess.PendingPurchase = &models.PendingPurchase{OrderID: "ORDER-1", CourseID: fx.course.ID, StudentID: fx.student.ID, CreatedAt: time.Now()}

	rec := serve(env.Student.PayPalCancel, httptest.NewRequest(http.MethodGet, "/", nil), sess)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, studentCoursesPath, rec.Header().Get("Location"))
	assert.Nil(t, sess.PendingPurchase)
	assert.False(t, env.enrolled(t, fx.student, fx.course))
}

func TestGatewayCheckoutOfFreeCourse(t *testing.T) {
	env := newTestEnv(t)
	fx := newStudentFixture(t, env, "0")
	sess := loggedIn(fx.student)

	rec := serve(env.Student.Purchase, courseRequest(http.MethodPost, "/", fx.course.ID, url.Values{"action": {"paypal"}}), sess)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, coursePath(fx.course.ID)+"/purchase", rec.Header().Get("Location"))
	assert.Nil(t, sess.PendingPurchase)
}

func TestWebhookIsAdvisory(t *testing.T) {
	env := newTestEnv(t)

	ok := httptest.NewRequest(http.MethodPost, "/student/paypal/webhook",
		strings.NewReader(`{"id":"WH-1","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"CAP-1","status":"COMPLETED"}}`))
	rec := serve(env.Student.PayPalWebhook, ok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	bad := httptest.NewRequest(http.MethodPost, "/student/paypal/webhook", strings.NewReader("not json"))
	rec = serve(env.Student.PayPalWebhook, bad, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCourseContentRequiresEnrollment(t *testing.T) {
	env := newTestEnv(t)
	fx := newStudentFixture(t, env, "9.99")
	body := "Lesson body " + uuid.NewString()[:6]
	_, err := env.Contents.Create(context.Background(), &models.CourseContent{
		CourseID: fx.course.ID, Title: "Intro", Kind: models.ContentKindText, TextBody: &body,
	})
	require.NoError(t, err)

	sess := loggedIn(fx.student)
	rec := serve(env.Student.CourseContent, courseRequest(http.MethodGet, "/", fx.course.ID, nil), sess)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, coursePath(fx.course.ID), rec.Header().Get("Location"))
	assert.Equal(t, msgNotEnrolled, lastFlash(sess).Message)

	env.enroll(t, fx.student, fx.course)
	rec = serve(env.Student.CourseContent, courseRequest(http.MethodGet, "/", fx.course.ID, nil), loggedIn(fx.student))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Intro")
}

func TestContentDetail(t *testing.T) {
	env := newTestEnv(t)
	fx := newStudentFixture(t, env, "9.99")
	env.enroll(t, fx.student, fx.course)
	ctx := context.Background()

	key := "course-files/" + fx.course.ID.String() + "/abc-notes.pdf"
	file, err := env.Contents.Create(ctx, &models.CourseContent{
		CourseID: fx.course.ID, Title: "Notes", Kind: models.ContentKindFile, FileKey: &key,
	})
	require.NoError(t, err)

	other := env.createCourse(t, fx.teacher, "Elsewhere", "0")
	text := "elsewhere"
	foreign, err := env.Contents.Create(ctx, &models.CourseContent{
		CourseID: other.ID, Title: "Foreign", Kind: models.ContentKindText, TextBody: &text,
	})
	require.NoError(t, err)

	detail := func(contentID uuid.UUID) *httptest.ResponseRecorder {
		req := withChiURLParams(httptest.NewRequest(http.MethodGet, "/", nil),
			"courseID", fx.course.ID.String(), "contentID", contentID.String())
		return serve(env.Student.ContentDetail, req, loggedIn(fx.student))
	}

	t.Run("file gets signed link", func(t *testing.T) {
		rec := detail(file.ID)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "https://files.test/"+key)
	})

	t.Run("content of another course", func(t *testing.T) {
		rec := detail(foreign.ID)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCompleteCourse(t *testing.T) {
	env := newTestEnv(t)
	fx := newStudentFixture(t, env, "9.99")

	sess := loggedIn(fx.student)
	rec := serve(env.Student.Complete, courseRequest(http.MethodPost, "/", fx.course.ID, url.Values{}), sess)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, coursePath(fx.course.ID), rec.Header().Get("Location"))

	env.enroll(t, fx.student, fx.course)
	sess = loggedIn(fx.student)
	rec = serve(env.Student.Complete, courseRequest(http.MethodPost, "/", fx.course.ID, url.Values{}), sess)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, courseContentPath(fx.course.ID), rec.Header().Get("Location"))
	assert.Equal(t, session.FlashSuccess, lastFlash(sess).Level)

	e, err := env.Enrollments.Find(context.Background(), fx.student.ID, fx.course.ID)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.True(t, e.Completed)
}
