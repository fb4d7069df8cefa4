package optimize

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestOptimize(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Optimize Suite")
}
