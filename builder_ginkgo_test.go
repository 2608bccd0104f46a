package composetest

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/flanksource/compose-test/logging"
)

var _ = Describe("Composition Builder", func() {
	Describe("Defaults", func() {
		It("should build with a two minute timeout and no log collection", func() {
			composition, err := NewComposition(&fakeCompose{}).Build()
			Expect(err).ToNot(HaveOccurred())

			Expect(composition.timeout).To(Equal(2 * time.Minute))
			Expect(composition.pollInterval).To(Equal(50 * time.Millisecond))
			Expect(composition.logs).To(Equal(logging.NewDoNothingCollector()))
			Expect(composition.waits).To(BeEmpty())
			Expect(composition.State()).To(Equal(StateConfigured))
		})
	})

	Describe("Wait registration", func() {
		It("should bind checks to identity-stable container handles", func() {
			builder := NewComposition(&fakeCompose{}).
				WaitingForService("web", ToHaveAllPortsOpen()).
				WaitingForService("db", ToHaveAllPortsOpen())

			composition, err := builder.Build()
			Expect(err).ToNot(HaveOccurred())

			By("registering waits in order")
			Expect(composition.waits).To(HaveLen(2))
			Expect(composition.waits[0].container.Name()).To(Equal("web"))
			Expect(composition.waits[1].container.Name()).To(Equal("db"))

			By("sharing handles with the runtime query surface")
			Expect(composition.waits[0].container).To(BeIdenticalTo(composition.Container("web")))
		})

		It("should reject a nil check", func() {
			_, err := NewComposition(&fakeCompose{}).
				WaitingForService("web", nil).
				Build()
			Expect(err).To(MatchError(ContainSubstring("web")))
		})
	})

	Describe("Timeouts", func() {
		It("should accept a custom service timeout", func() {
			composition, err := NewComposition(&fakeCompose{}).
				ServiceTimeout(time.Second).
				Build()
			Expect(err).ToNot(HaveOccurred())
			Expect(composition.timeout).To(Equal(time.Second))
		})

		It("should reject non-positive durations", func() {
			_, err := NewComposition(&fakeCompose{}).ServiceTimeout(0).Build()
			Expect(err).To(MatchError(ContainSubstring("positive")))

			_, err = NewComposition(&fakeCompose{}).PollInterval(-time.Second).Build()
			Expect(err).To(MatchError(ContainSubstring("positive")))
		})

		It("should keep reporting the first configuration error", func() {
			_, err := NewComposition(&fakeCompose{}).
				ServiceTimeout(0).
				PollInterval(-time.Second).
				Build()
			Expect(err).To(MatchError(ContainSubstring("timeout")))
		})
	})

	Describe("Log archiving", func() {
		It("should create the log directory and switch to a file collector", func() {
			dir := filepath.Join(GinkgoT().TempDir(), "logs")

			composition, err := NewComposition(&fakeCompose{}).
				SaveLogsTo(dir).
				Build()
			Expect(err).ToNot(HaveOccurred())

			Expect(dir).To(BeADirectory())
			Expect(composition.logs).To(BeAssignableToTypeOf(&logging.FileCollector{}))
		})

		It("should reject a log path that is a regular file", func() {
			file := filepath.Join(GinkgoT().TempDir(), "logs")
			Expect(os.WriteFile(file, []byte("occupied"), 0o644)).To(Succeed())

			_, err := NewComposition(&fakeCompose{}).SaveLogsTo(file).Build()
			Expect(err).To(MatchError(ContainSubstring("regular file")))
		})
	})

	Describe("FromFiles", func() {
		It("should surface manifest validation failures at Build", func() {
			_, err := FromFiles(filepath.Join(GinkgoT().TempDir(), "missing.yml")).
				WaitingForService("web", ToHaveAllPortsOpen()).
				Build()
			Expect(err).To(MatchError(ContainSubstring("does not exist")))
		})
	})
})
