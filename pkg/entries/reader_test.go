// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.

package entries_test

import (
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/opiproject/opi-pi-tables/pkg/entries"
	"github.com/opiproject/opi-pi-tables/pkg/matchkey"
	"github.com/opiproject/opi-pi-tables/pkg/p4info/p4infotest"
)

var _ = Describe("Reader", func() {
	var s *entries.Serializer

	BeforeEach(func() {
		s = entries.NewSerializer(p4infotest.Schema(), 0)
	})

	Context("ACL entries with and without priority", func() {
		var batch []entries.FetchedEntry

		BeforeEach(func() {
			prio := uint32(100)
			key := func() matchkey.Key {
				return matchkey.Key{
					&matchkey.Exact{Key: []byte{0x06}},
					&matchkey.Ternary{Key: []byte{0x00, 0x16}, Mask: []byte{0xff, 0xff}},
				}
			}
			batch = []entries.FetchedEntry{
				{Handle: 1, Match: key(), ActionID: p4infotest.ActionSetPort, Params: [][]byte{{0x01, 0x02}}, Priority: &prio},
				{Handle: 2, Match: key(), ActionID: p4infotest.ActionSetPort, Params: [][]byte{{0x01, 0x02}}},
			}
		})

		It("parses back exactly what was written", func() {
			res, err := s.Serialize(p4infotest.TableACL, batch)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.NumEntries).To(Equal(2))
			Expect(res.Size).To(BeNumerically("<", res.Capacity))

			r, err := entries.NewReader(p4infotest.Schema(), p4infotest.TableACL, res.Bytes())
			Expect(err).NotTo(HaveOccurred())
			got, err := r.ReadAll()
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(batch))
		})

		It("reports io.EOF after the last entry", func() {
			res, err := s.Serialize(p4infotest.TableACL, batch)
			Expect(err).NotTo(HaveOccurred())

			r, err := entries.NewReader(p4infotest.Schema(), p4infotest.TableACL, res.Bytes())
			Expect(err).NotTo(HaveOccurred())
			for range batch {
				_, err = r.Next()
				Expect(err).NotTo(HaveOccurred())
			}
			_, err = r.Next()
			Expect(err).To(Equal(io.EOF))
		})

		It("restores stripped leading zero bytes of parameters", func() {
			batch[1].Params = [][]byte{{0x02}}
			res, err := s.Serialize(p4infotest.TableACL, batch)
			Expect(err).NotTo(HaveOccurred())

			r, err := entries.NewReader(p4infotest.Schema(), p4infotest.TableACL, res.Bytes())
			Expect(err).NotTo(HaveOccurred())
			got, err := r.ReadAll()
			Expect(err).NotTo(HaveOccurred())
			Expect(got[1].Params).To(Equal([][]byte{{0x00, 0x02}}))
		})
	})

	Context("tables mixing valid and range fields", func() {
		It("round-trips every field type", func() {
			batch := []entries.FetchedEntry{{
				Handle: 0xdeadbeef,
				Match: matchkey.Key{
					&matchkey.Valid{Present: true},
					&matchkey.Exact{Key: []byte{0x11}},
					&matchkey.Range{Start: []byte{0x00, 0x10}, End: []byte{0x00, 0x20}},
				},
				ActionID: p4infotest.ActionDrop,
				Params:   [][]byte{},
			}}
			res, err := s.Serialize(p4infotest.TableMixed, batch)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.MatchKeySize).To(Equal(6))

			r, err := entries.NewReader(p4infotest.Schema(), p4infotest.TableMixed, res.Bytes())
			Expect(err).NotTo(HaveOccurred())
			got, err := r.ReadAll()
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(1))
			Expect(got[0].Handle).To(Equal(uint64(0xdeadbeef)))
			Expect(got[0].Match).To(Equal(batch[0].Match))
			Expect(got[0].Priority).To(BeNil())
		})
	})

	It("rejects an unknown table", func() {
		_, err := entries.NewReader(p4infotest.Schema(), 1, nil)
		Expect(err).To(MatchError(entries.ErrUnknownTable))
	})
})
