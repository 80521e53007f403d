package version

import "testing"

func TestGet(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()
	Version = "1.2.3"

	if got := Get(); got.Version != "1.2.3" || got.GitSHA != GitSHA {
		t.Errorf("Get() = %+v", got)
	}
	if got := String(); got != "eps 1.2.3 ("+GitSHA+", built "+BuildTime+")" {
		t.Errorf("String() = %q", got)
	}
}
