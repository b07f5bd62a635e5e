package filesys

import "testing"

func TestJoin(t *testing.T) {
	tests := []struct {
		sep, dir, name, want string
	}{
		{"/", "/srv", "report.csv", "/srv/report.csv"},
		{"/", "/", "etc", "/etc"},
		{"/", "/srv/", "a", "/srv/a"},
		{`\`, `C:\Users`, "u", `C:\Users\u`},
		{`\`, `C:\`, "Users", `C:\Users`},
		{"/", "", "a", "a"},
	}
	for _, tt := range tests {
		if got := Join(tt.sep, tt.dir, tt.name); got != tt.want {
			t.Errorf("Join(%q, %q, %q) = %q, want %q", tt.sep, tt.dir, tt.name, got, tt.want)
		}
	}
}

func TestParent(t *testing.T) {
	tests := []struct {
		sep, path, want string
	}{
		{"/", "/home/u", "/home"},
		{"/", "/home/u/", "/home"},
		{"/", "/home", "/"},
		{"/", "/", "/"},
		{`\`, `C:\Users\u`, `C:\Users`},
		{`\`, `C:\Users`, `C:\`},
		{`\`, `C:\`, `C:\`},
		{"/", "relative", "relative"},
	}
	for _, tt := range tests {
		if got := Parent(tt.sep, tt.path); got != tt.want {
			t.Errorf("Parent(%q, %q) = %q, want %q", tt.sep, tt.path, got, tt.want)
		}
	}
}

func TestBaseAndRoot(t *testing.T) {
	if got := Base("/", "/srv/data/"); got != "data" {
		t.Errorf("Base = %q, want data", got)
	}
	if got := Base(`\`, `C:\Users\u\file.txt`); got != "file.txt" {
		t.Errorf("Base = %q, want file.txt", got)
	}
	if !IsRoot("/", "/") {
		t.Error("expected / to be root")
	}
	if IsRoot("/", "/srv") {
		t.Error("expected /srv not to be root")
	}
	if !IsRoot(`\`, `D:\`) {
		t.Error(`expected D:\ to be root`)
	}
}

func TestValidName(t *testing.T) {
	valid := []string{"docs", ".env", "a b"}
	invalid := []string{"", "  ", ".", "..", "a/b"}
	for _, name := range valid {
		if !ValidName("/", name) {
			t.Errorf("expected %q to be valid", name)
		}
	}
	for _, name := range invalid {
		if ValidName("/", name) {
			t.Errorf("expected %q to be invalid", name)
		}
	}
	// The other side's separator is an ordinary character
	if !ValidName(`\`, "a/b") {
		t.Error(`expected "a/b" to be valid with a backslash separator`)
	}
}
