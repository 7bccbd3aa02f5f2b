// common.go
//
// Tenant-scoped intake forms and application review service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of jam-build-intakedb.
// jam-build-intakedb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// jam-build-intakedb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with jam-build-intakedb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-intakedb/internal/services"
	"github.com/localnerve/jam-build-intakedb/internal/types"
)

// parseBody decodes the JSON body into dst, rendering decode failures as 400.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return types.BadRequestError("Invalid input: " + err.Error())
	}
	return nil
}

// queryBool reads a boolean query flag; absent or malformed values are false.
func queryBool(c *fiber.Ctx, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(c.Query(key)))
	return err == nil && v
}

// pageFrom reads page and limit query parameters.
func pageFrom(c *fiber.Ctx) (services.Page, error) {
	var p services.Page
	for key, dst := range map[string]*int{"page": &p.Page, "limit": &p.Limit} {
		raw := strings.TrimSpace(c.Query(key))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, types.BadRequestError(key + " must be a positive integer")
		}
		*dst = n
	}
	return p, nil
}
