// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package drive lists the remote file tree and tracks where the user is in
// it and what they have picked for syncing.
//
// The Client wraps GET /api/drive/list. The Navigator keeps the breadcrumb
// stack and owns the Selection, which is scoped to the folder being viewed:
// moving to another folder clears it.
//
//	nav := drive.NewNavigator()
//	entries, err := client.ListChildren(ctx, nav.Current().ID)
//	nav.Selection().Toggle(entries[0])
package drive
