package extract

import "github.com/qorlgns1/binbang-sub001/internal/model"

// ExtractorResult is what a custom extractor script returns from the page.
// matched=false still carries any metadata and trace the script gathered, so
// downstream fallback stages keep the diagnostics.
type ExtractorResult struct {
	Matched   bool                    `json:"matched"`
	Available bool                    `json:"available"`
	Price     string                  `json:"price"`
	Metadata  *model.PlatformMetadata `json:"metadata"`
	Trace     string                  `json:"trace"`
}

// DefaultExtractor returns the hardcoded in-page extractor for a platform,
// used when no custom script is configured.
func DefaultExtractor(p model.Platform) string {
	if p == model.PlatformAgoda {
		return agodaExtractor
	}
	return airbnbExtractor
}

// The extractor scripts run inside the page. Each independently attempts
// structured-data extraction, availability detection via data attributes,
// and a layered attribute-priority price scan, then reports matched=false
// when none of its own signals fired.

const airbnbExtractor = `
(() => {
  const out = { matched: false, available: false, price: '', metadata: null, trace: '' };

  const ld = document.querySelector('script[type="application/ld+json"]');
  if (ld) {
    try {
      const data = JSON.parse(ld.textContent);
      const node = Array.isArray(data) ? data[0] : data;
      out.metadata = {
        platform_id: String(node.identifier || ''),
        name: node.name || '',
        image: Array.isArray(node.image) ? node.image[0] : (node.image || ''),
        description: node.description || '',
        address: node.address ? (node.address.streetAddress || node.address.addressLocality || '') : '',
        rating: node.aggregateRating ? String(node.aggregateRating.ratingValue) : '',
        latitude: node.geo ? Number(node.geo.latitude) || 0 : 0,
        longitude: node.geo ? Number(node.geo.longitude) || 0 : 0
      };
      out.trace += 'ld+json;';
    } catch (e) { out.trace += 'ld+json-parse-error;'; }
  }

  const reserve = document.querySelector('[data-testid="homes-pdp-cta-btn"], [data-plugin-in-point-id="BOOK_IT_SIDEBAR"] button');
  if (reserve) {
    out.matched = true;
    out.available = !reserve.disabled;
    out.trace += 'cta;';
  }
  const blocked = document.querySelector('[data-testid="bookit-sidebar-unavailable"], [data-section-id="UNAVAILABLE"]');
  if (blocked) {
    out.matched = true;
    out.available = false;
    out.trace += 'unavailable-marker;';
  }

  const priceSelectors = [
    '[data-testid="book-it-default"] span._1y74zjx',
    'span._1qs94rc span._tyxjp1',
    'span.u1opajno, span.u174bpcy',
    'div[data-plugin-in-point-id="BOOK_IT_SIDEBAR"] span'
  ];
  for (const sel of priceSelectors) {
    const el = document.querySelector(sel);
    if (el && /[0-9]/.test(el.textContent)) {
      out.price = el.textContent.trim().split('\n')[0];
      out.trace += 'price:' + sel + ';';
      break;
    }
  }

  return out;
})()
`

const agodaExtractor = `
(() => {
  const out = { matched: false, available: false, price: '', metadata: null, trace: '' };

  const ld = document.querySelector('script[type="application/ld+json"]');
  if (ld) {
    try {
      const data = JSON.parse(ld.textContent);
      const node = Array.isArray(data) ? data[0] : data;
      out.metadata = {
        platform_id: String(node.identifier || ''),
        name: node.name || '',
        image: Array.isArray(node.image) ? node.image[0] : (node.image || ''),
        description: node.description || '',
        address: node.address ? (node.address.streetAddress || node.address.addressLocality || '') : '',
        rating: node.aggregateRating ? String(node.aggregateRating.ratingValue) : '',
        latitude: node.geo ? Number(node.geo.latitude) || 0 : 0,
        longitude: node.geo ? Number(node.geo.longitude) || 0 : 0
      };
      out.trace += 'ld+json;';
    } catch (e) { out.trace += 'ld+json-parse-error;'; }
  }

  const soldOut = document.querySelector('[data-selenium="soldOutMessage"], [data-element-name="sold-out-banner"]');
  if (soldOut) {
    out.matched = true;
    out.available = false;
    out.trace += 'soldout-marker;';
  }
  const bookBtn = document.querySelector('[data-selenium="chooseRoomButton"], [data-element-name="property-book-now"]');
  if (bookBtn && !soldOut) {
    out.matched = true;
    out.available = true;
    out.trace += 'book-btn;';
  }

  const priceSelectors = [
    '[data-selenium="display-price"]',
    '[data-element-name="final-price"]',
    '[data-ppapi="room-price"]',
    'span.pd-price'
  ];
  for (const sel of priceSelectors) {
    const el = document.querySelector(sel);
    if (el && /[0-9]/.test(el.textContent)) {
      out.price = el.textContent.trim().split('\n')[0];
      out.trace += 'price:' + sel + ';';
      break;
    }
  }

  return out;
})()
`

// SelectorTextScript returns JS that reads the combined visible text of the
// first element matching each selector, in order, as a string array.
// A non-matching selector yields an empty string at its position.
const SelectorTextScript = `
((selectors) => selectors.map(sel => {
  try {
    const el = document.querySelector(sel);
    return el ? el.innerText : '';
  } catch (e) { return ''; }
}))
`

// BodyTextScript reads the whole rendered page text for free-text matching.
const BodyTextScript = `document.body ? document.body.innerText : ''`

// TestableElementsScript snapshots every element carrying any of the given
// attribute names. Diagnostic only; never feeds availability decisions.
const TestableElementsScript = `
((attrs) => {
  const out = [];
  for (const attr of attrs) {
    for (const el of document.querySelectorAll('[' + attr + ']')) {
      out.push({
        tag: el.tagName.toLowerCase(),
        attribute: attr,
        value: el.getAttribute(attr) || '',
        text: (el.innerText || '').slice(0, 200),
        html: el.outerHTML.slice(0, 1000)
      });
    }
  }
  return out;
})
`
