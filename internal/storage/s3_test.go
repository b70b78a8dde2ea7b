// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package storage

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewWithoutCredentials(t *testing.T) {
	c, err := New(Config{Bucket: "b"})
	if err != nil || c != nil {
		t.Errorf("New(empty) = %v, %v; want nil, nil", c, err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(Config{Endpoint: "http://s3.local", AccessKey: "a", SecretKey: "s"})
	if err == nil {
		t.Error("expected error without bucket")
	}
}

func TestCourseFileKey(t *testing.T) {
	course := uuid.New()
	key := CourseFileKey(course, "Week 1 Slides.PDF")

	prefix := "course-files/" + course.String() + "/"
	if !strings.HasPrefix(key, prefix) {
		t.Fatalf("key %q missing prefix %q", key, prefix)
	}
	if !strings.HasSuffix(key, "-week-1-slides.pdf") {
		t.Errorf("key %q missing slugged name", key)
	}
	if CourseFileKey(course, "Week 1 Slides.PDF") == key {
		t.Error("keys for the same name must differ")
	}
	if !BelongsToCourse(key, course) || BelongsToCourse(key, uuid.New()) {
		t.Error("BelongsToCourse mismatch")
	}
}

// TestPresignedURL signs offline; no S3 server is contacted.
func TestPresignedURL(t *testing.T) {
	c, err := New(Config{
		Endpoint: "http://s3.local:9000/", Region: "fsn1",
		AccessKey: "AKIA", SecretKey: "secret", Bucket: "course-files",
	})
	if err != nil || c == nil {
		t.Fatalf("New = %v, %v", c, err)
	}

	raw, err := c.PresignedURL(context.Background(), "course-files/x/a.pdf", 10*time.Minute)
	if err != nil {
		t.Fatalf("PresignedURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Host != "s3.local:9000" {
		t.Errorf("host: got %q", u.Host)
	}
	if u.Path != "/course-files/course-files/x/a.pdf" {
		t.Errorf("path-style path: got %q", u.Path)
	}
	if u.Query().Get("X-Amz-Expires") != "600" {
		t.Errorf("expires: got %q", u.Query().Get("X-Amz-Expires"))
	}
}
