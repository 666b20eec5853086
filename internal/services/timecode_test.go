package services

import (
	"testing"

	"github.com/Corphon/PodcastContentFactory/internal/models"
)

func TestScanTimecodes(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		want       []string
	}{
		{"plain text", "We talked about sugar for an hour. Ratio was 3:1.", nil},
		{"bracketed", "[00:12:30] Host: welcome back", []string{"00:12:30"}},
		{"bare hms", "At 1:02:03 she said", []string{"1:02:03"}},
		{"minutes seconds", "04:15 guest laughs\n05:00 next", []string{"04:15", "05:00"}},
		{"srt", "1\n00:00:01,000 --> 00:00:04,500\nHello", []string{"00:00:01", "00:00:04"}},
		{"vtt", "WEBVTT\n\n00:01.000 --> 00:03.250\nHi", []string{"00:01", "00:03"}},
		{"invalid seconds", "at 10:75 nothing", nil},
		{"clock time in prose", "We met at 10:30 and talked until 11:45.", nil},
		{"parenthesised", "A quick aside (12:30) about sleep", []string{"12:30"}},
		{"bare hms in prose", "Skip to 0:12:30 for the story", []string{"0:12:30"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScanTimecodes(tt.transcript)
			if len(got) != len(tt.want) {
				t.Fatalf("ScanTimecodes = %+v, want %v", got, tt.want)
			}
			for i, code := range got {
				if code.Raw != tt.want[i] {
					t.Fatalf("code[%d] = %q, want %q", i, code.Raw, tt.want[i])
				}
			}
		})
	}
}

func TestCheckTimestampHonesty(t *testing.T) {
	withTimestamps := func(times ...string) *models.AssetBundle {
		b := validBundle()
		for _, tm := range times {
			b.Timestamps = append(b.Timestamps, models.Timestamp{Time: tm, Topic: "topic"})
		}
		return b
	}

	const timed = "[00:00:05] Intro\n[00:12:30] The crash\n[01:02:03] Wrap"

	tests := []struct {
		name       string
		transcript string
		bundle     *models.AssetBundle
		wantErr    bool
	}{
		{"plain transcript empty timestamps", "no codes here", withTimestamps(), false},
		{"plain transcript invented timestamps", "no codes here", withTimestamps("00:01:00"), true},
		{"timed transcript matching", timed, withTimestamps("00:12:30", "[01:02:03]"), false},
		{"timed transcript with millis", "00:00:05,200 --> 00:00:07,000 hi", withTimestamps("00:00:05"), false},
		{"timed transcript invented", timed, withTimestamps("00:12:30", "00:45:00"), true},
		{"not a timecode", timed, withTimestamps("intro"), true},
		{"reformatted short form", "[00:00:05] Host: Welcome. [00:01:10] Guest: Thanks for having me.", withTimestamps("0:05", "1:10"), true},
		{"same seconds different spelling", timed, withTimestamps("0:12:30"), true},
		{"prose clock time is not a timecode", "We met at 10:30.", withTimestamps("10:30"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckTimestampHonesty(tt.transcript, tt.bundle)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckTimestampHonesty err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
