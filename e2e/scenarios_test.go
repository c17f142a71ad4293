package e2e

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/treyturner/ninjaone-e2e/internal/models"
	"github.com/treyturner/ninjaone-e2e/internal/names"
)

var _ = Describe("Device inventory", Ordered, func() {
	It("lists every device the API reports", func(ctx SpecContext) {
		Expect(runner.ListConsistency(ctx)).To(Succeed())
	})

	It("creates a device through the add form", func(ctx SpecContext) {
		Expect(runner.CreateDevice(ctx)).To(Succeed())

		Eventually(func(g Gomega) {
			d, err := api.FindByName(ctx, "USER-"+runner.RunID)
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(d).NotTo(BeNil())
			g.Expect(d.Type).To(Equal(models.WindowsWorkstation))
		}).Should(Succeed())
	})

	It("still lists every device after the create", func(ctx SpecContext) {
		Expect(runner.ListConsistency(ctx)).To(Succeed())
	})

	It("shows a rename made through the API after a reload", func(ctx SpecContext) {
		before, err := api.ListDevices(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(runner.ExternalUpdate(ctx)).To(Succeed())

		// The stub lists cards in API order, so the first card is before[0].
		if store != nil && len(before) > 0 {
			renamed, err := names.DeriveNewName(before[0].SystemName)
			Expect(err).NotTo(HaveOccurred())
			d, err := api.FindByName(ctx, renamed)
			Expect(err).NotTo(HaveOccurred())
			Expect(d).NotTo(BeNil())
			Expect(d.ID).To(Equal(before[0].ID))
		}
	})

	It("drops a device deleted through the API after a reload", func(ctx SpecContext) {
		before, err := api.ListDevices(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(runner.ExternalDelete(ctx)).To(Succeed())

		after, err := api.ListDevices(ctx)
		Expect(err).NotTo(HaveOccurred())
		if len(before) > 0 {
			Expect(after).To(HaveLen(len(before) - 1))
		}
	})

	It("keeps the stub store consistent with the API", func(ctx SpecContext) {
		if store == nil {
			Skip("running against a live deployment")
		}
		fromAPI, err := api.ListDevices(ctx)
		Expect(err).NotTo(HaveOccurred())
		fromStore, err := store.List("")
		Expect(err).NotTo(HaveOccurred())
		Expect(fromAPI).To(HaveLen(len(fromStore)))
		for i, d := range fromStore {
			Expect(fromAPI[i]).To(Equal(*d))
		}
	})
})

var _ = Describe("Name derivation", func() {
	DescribeTable("IncrementChar",
		func(in, want rune) {
			Expect(names.IncrementChar(in)).To(Equal(want))
		},
		Entry("wraps lower case", 'z', 'a'),
		Entry("wraps upper case", 'Z', 'A'),
		Entry("advances lower case", 'q', 'r'),
		Entry("advances upper case", 'B', 'C'),
		Entry("advances a digit by code point", '0', '1'),
	)

	DescribeTable("DeriveNewName",
		func(in, want string) {
			Expect(names.DeriveNewName(in)).To(Equal(want))
		},
		Entry("advances the last letter", "USER-AAAA0B", "USER-AAAA0C"),
		Entry("wraps the last letter", "USER-AAAA0Z", "USER-AAAA0A"),
	)

	It("rejects an empty name", func() {
		_, err := names.DeriveNewName("")
		Expect(err).To(MatchError(names.ErrEmptyName))
	})
})
