package scanning

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Gemini", func() {
	Describe("NewGemini", func() {
		It("requires an api key", func() {
			_, err := NewGemini("", "", ModeText)
			Expect(err).To(MatchError(ContainSubstring("api key")))
		})
	})

	DescribeTable("model name",
		func(configured, want string) {
			Expect(geminiModelName(configured)).To(Equal(want))
		},
		Entry("falls back to the default", "", DefaultGeminiModel),
		Entry("keeps a configured model", "gemini-1.5-flash", "gemini-1.5-flash"),
	)
})
