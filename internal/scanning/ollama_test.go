package scanning

import (
	"encoding/base64"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server     *ghttp.Server
		recognizer *Ollama
		mode       Mode
		rec        *Recognition
		err        error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		mode = ModeText
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		recognizer = NewOllama(server.URL(), "llava", mode)
		rec, err = recognizer.Recognize([]byte("png bytes"), "image/png")
	})

	When("the model answers with text", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					var body ollamaChatRequest
					Expect(decodeJSON(r, &body)).To(Succeed())
					Expect(body.Model).To(Equal("llava"))
					Expect(body.Stream).To(BeFalse())
					Expect(body.Messages[1].Images).To(ConsistOf(base64.StdEncoding.EncodeToString([]byte("png bytes"))))
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: "Invoice No: INV-1\nTotal: 100"},
					Done:    true,
				}),
			))
		})

		It("returns the transcription", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Text).To(Equal("Invoice No: INV-1\nTotal: 100"))
		})
	})

	When("structured mode is selected", func() {
		BeforeEach(func() {
			mode = ModeStructured
			server.AppendHandlers(ghttp.CombineHandlers(
				func(w http.ResponseWriter, r *http.Request) {
					var body ollamaChatRequest
					Expect(decodeJSON(r, &body)).To(Succeed())
					Expect(body.Format).To(Equal("json"))
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Content: `{"invoice_number": "INV-2", "total_amount": 50}`},
				}),
			))
		})

		It("parses the fields", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Fields.InvoiceNumber).To(Equal("INV-2"))
			Expect(rec.Fields.TotalAmount).To(Equal("50"))
		})
	})

	When("the API returns an error status", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns an OCR error with the body", func() {
			Expect(IsOcrError(err)).To(BeTrue())
			Expect(err).To(MatchError(ContainSubstring("model not loaded")))
		})
	})

	When("the model answers with nothing", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{Done: true}))
		})

		It("returns an OCR error", func() {
			Expect(err).To(MatchError("ocr failed: empty response"))
		})
	})
})
