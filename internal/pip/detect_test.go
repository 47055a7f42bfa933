package pip

import (
	"errors"
	"reflect"
	"testing"
)

func fakeLookPath(available ...string) func(string) (string, error) {
	set := make(map[string]bool, len(available))
	for _, a := range available {
		set[a] = true
	}
	return func(name string) (string, error) {
		if set[name] {
			return "/usr/bin/" + name, nil
		}
		return "", errors.New("not found")
	}
}

func TestDetect_PrefersPip3(t *testing.T) {
	got, err := detectWith("", fakeLookPath("pip", "pip3"))
	if err != nil {
		t.Fatalf("detectWith() error: %v", err)
	}
	if want := []string{"/usr/bin/pip3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("detectWith() = %v, want %v", got, want)
	}
}

func TestDetect_FallsBackToModule(t *testing.T) {
	got, err := detectWith("", fakeLookPath("python3"))
	if err != nil {
		t.Fatalf("detectWith() error: %v", err)
	}
	if want := []string{"/usr/bin/python3", "-m", "pip"}; !reflect.DeepEqual(got, want) {
		t.Errorf("detectWith() = %v, want %v", got, want)
	}
}

func TestDetect_Configured(t *testing.T) {
	got, err := detectWith("python3.12 -m pip", fakeLookPath("python3.12", "pip3"))
	if err != nil {
		t.Fatalf("detectWith() error: %v", err)
	}
	if want := []string{"/usr/bin/python3.12", "-m", "pip"}; !reflect.DeepEqual(got, want) {
		t.Errorf("detectWith() = %v, want %v", got, want)
	}

	if _, err := detectWith("pip9", fakeLookPath("pip3")); err == nil {
		t.Error("detectWith() should fail for a configured binary that is not on PATH")
	}
}

func TestDetect_NothingFound(t *testing.T) {
	_, err := detectWith("", fakeLookPath())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("detectWith() error = %v, want ErrNotFound", err)
	}
}
