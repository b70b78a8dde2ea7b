// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package notify runs outbound email off the request path. Handlers publish
// small JSON jobs to an in-process watermill pub/sub; one goroutine per
// topic consumes them. Course events are expanded into one mail job per
// recipient.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"edustream/internal/mail"
	"edustream/internal/metrics"
)

// Topic names.
const (
	TopicMail          = "mail.send"
	TopicCourseCreated = "course.created"
	TopicContentAdded  = "content.added"
)

// handlerTimeout bounds a single job, including SMTP delivery.
const handlerTimeout = 30 * time.Second

// Audience resolves who should hear about a course event.
type Audience interface {
	TeacherStudentEmails(ctx context.Context, teacherID uuid.UUID) ([]string, error)
	CourseStudentEmails(ctx context.Context, courseID uuid.UUID) ([]string, error)
}

// MailJob is one message to deliver.
type MailJob struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// CourseCreated announces a new course to students of the same teacher.
type CourseCreated struct {
	CourseID        uuid.UUID `json:"course_id"`
	TeacherID       uuid.UUID `json:"teacher_id"`
	TeacherUsername string    `json:"teacher_username"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
}

// ContentAdded announces new lessons to the students of one course.
type ContentAdded struct {
	CourseID        uuid.UUID `json:"course_id"`
	CourseTitle     string    `json:"course_title"`
	TeacherUsername string    `json:"teacher_username"`
	Added           int       `json:"added"`
}

// Queue publishes and consumes notification jobs.
type Queue struct {
	pubsub   *gochannel.GoChannel
	sender   mail.Sender
	audience Audience
	baseURL  string

	wg sync.WaitGroup
}

// NewQueue creates a queue that delivers through sender. baseURL is used
// to build links in notification bodies.
func NewQueue(sender mail.Sender, audience Audience, baseURL string) *Queue {
	logger := watermill.NewSlogLogger(slog.Default())
	return &Queue{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, logger),
		sender:   sender,
		audience: audience,
		baseURL:  baseURL,
	}
}

// Start subscribes the topic consumers. They run until Close or until ctx
// is cancelled.
func (q *Queue) Start(ctx context.Context) error {
	handlers := map[string]func(context.Context, []byte) error{
		TopicMail:          q.handleMail,
		TopicCourseCreated: q.handleCourseCreated,
		TopicContentAdded:  q.handleContentAdded,
	}
	for topic, h := range handlers {
		msgs, err := q.pubsub.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		q.wg.Add(1)
		go q.consume(topic, msgs, h)
	}
	slog.Info("notification queue started")
	return nil
}

// Close stops accepting jobs and waits for consumers to finish the job
// they are on.
func (q *Queue) Close() error {
	err := q.pubsub.Close()
	q.wg.Wait()
	return err
}

func (q *Queue) consume(topic string, msgs <-chan *message.Message, h func(context.Context, []byte) error) {
	defer q.wg.Done()
	for msg := range msgs {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		if err := h(ctx, msg.Payload); err != nil {
			slog.Error("notification job failed", "topic", topic, "message_id", msg.UUID, "error", err)
			metrics.NotificationJobs.WithLabelValues(topic, "error").Inc()
		} else {
			metrics.NotificationJobs.WithLabelValues(topic, "ok").Inc()
		}
		cancel()
		// Delivery is best-effort; failed jobs are not redelivered.
		msg.Ack()
	}
}

func (q *Queue) publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s job: %w", topic, err)
	}
	if err := q.pubsub.Publish(topic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Send enqueues one email and returns immediately. It satisfies
// mail.Sender, so callers that must not block on delivery can use the
// queue in place of a real sender.
func (q *Queue) Send(_ context.Context, to, subject, body string) error {
	return q.publish(TopicMail, MailJob{To: to, Subject: subject, Body: body})
}

// PublishCourseCreated enqueues the new-course announcement.
func (q *Queue) PublishCourseCreated(_ context.Context, ev CourseCreated) error {
	return q.publish(TopicCourseCreated, ev)
}

// PublishContentAdded enqueues the new-content announcement.
func (q *Queue) PublishContentAdded(_ context.Context, ev ContentAdded) error {
	return q.publish(TopicContentAdded, ev)
}

func (q *Queue) handleMail(ctx context.Context, payload []byte) error {
	var job MailJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("decode mail job: %w", err)
	}
	if err := q.sender.Send(ctx, job.To, job.Subject, job.Body); err != nil {
		return err
	}
	slog.Debug("mail delivered", "to", job.To, "subject", job.Subject)
	return nil
}

func (q *Queue) handleCourseCreated(ctx context.Context, payload []byte) error {
	var ev CourseCreated
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decode course event: %w", err)
	}
	recipients, err := q.audience.TeacherStudentEmails(ctx, ev.TeacherID)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("New Course Published by %s!", ev.TeacherUsername)
	body := fmt.Sprintf(
		"Hello,\n\n%s, whose course you are taking, has published a new course:\n\n%s\n\n%s\n\nView it here: %s/student/courses/%s\n",
		ev.TeacherUsername, ev.Title, ev.Description, q.baseURL, ev.CourseID)
	return q.fanOut(recipients, subject, body)
}

func (q *Queue) handleContentAdded(ctx context.Context, payload []byte) error {
	var ev ContentAdded
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decode content event: %w", err)
	}
	recipients, err := q.audience.CourseStudentEmails(ctx, ev.CourseID)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("New Content Added to Your Course: %s", ev.CourseTitle)
	body := fmt.Sprintf(
		"Hello,\n\n%s added new material to %s.\n\nContinue learning: %s/student/courses/%s/content\n",
		ev.TeacherUsername, ev.CourseTitle, q.baseURL, ev.CourseID)
	return q.fanOut(recipients, subject, body)
}

func (q *Queue) fanOut(recipients []string, subject, body string) error {
	for _, to := range recipients {
		if err := q.Send(context.Background(), to, subject, body); err != nil {
			return err
		}
	}
	return nil
}
